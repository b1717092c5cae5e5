package handlers

import (
	"sort"
	"sync"

	"mapsmith/services"
)

// ClientManager tracks the open editing sessions by id
type ClientManager struct {
	clients map[string]*ClientHandler
	mutex   sync.RWMutex
}

// NewClientManager creates a new client manager
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[string]*ClientHandler),
	}
}

// AddClient registers a session
func (cm *ClientManager) AddClient(sessionID string, handler *ClientHandler) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.clients[sessionID] = handler
}

// RemoveClient forgets a session
func (cm *ClientManager) RemoveClient(sessionID string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	delete(cm.clients, sessionID)
}

// Editor returns the editor of an open session
func (cm *ClientManager) Editor(sessionID string) (*services.EditorService, bool) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	client, ok := cm.clients[sessionID]
	if !ok {
		return nil, false
	}
	return client.editor, true
}

// Sessions lists the open session ids in order
func (cm *ClientManager) Sessions() []string {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	ids := make([]string, 0, len(cm.clients))
	for id := range cm.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ExecuteOnAllClients executes a function for each connected client
func (cm *ClientManager) ExecuteOnAllClients(action func(*ClientHandler)) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for _, client := range cm.clients {
		action(client)
	}
}

// CloseAll disconnects every client
func (cm *ClientManager) CloseAll() {
	cm.ExecuteOnAllClients(func(client *ClientHandler) {
		client.conn.Close()
	})
}
