// Package sse fans post reload events out to connected browser tabs over
// Server-Sent Events.
package sse

import (
	"sync"

	"github.com/foliohq/folio/internal/model"
)

// msgBuffer absorbs short bursts; a client whose buffer is full misses the
// message rather than stalling the broadcast.
const msgBuffer = 8

type Client struct {
	Msg    chan string
	PostID model.PostID
}

func NewClient(postID model.PostID) *Client {
	return &Client{
		Msg:    make(chan string, msgBuffer),
		PostID: postID,
	}
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast queues msg for every client watching postID and reports how many
// clients accepted it.
func (s *SSEClients) Broadcast(postID model.PostID, msg string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for client := range s.clients {
		if client.PostID != postID {
			continue
		}
		select {
		case client.Msg <- msg:
			delivered++
		default:
		}
	}
	return delivered
}
