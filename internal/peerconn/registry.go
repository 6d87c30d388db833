package peerconn

// getOrCreate returns the connection for remoteID, constructing and
// inserting one on first call. Creation happens under the manager lock
// so concurrent callers never observe a partially constructed entry, and
// a freshly created connection is bound to the current local stream
// before the lock is released — join order does not matter.
func (m *Manager) getOrCreate(remoteID string) (*PeerConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.conns[remoteID]; ok {
		return conn, nil
	}

	conn, err := m.newConnection(remoteID)
	if err != nil {
		return nil, err
	}
	m.conns[remoteID] = conn

	if err := m.bindLocalLocked(conn); err != nil {
		m.log.Warn("attaching local stream to new connection failed",
			"peer", remoteID,
			"error", err,
		)
	}

	m.log.Info("peer connection created", "peer", remoteID)
	return conn, nil
}

// get returns the connection for remoteID, or nil.
func (m *Manager) get(remoteID string) *PeerConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conns[remoteID]
}

// evict removes the registry entry for conn if it is still current.
func (m *Manager) evict(conn *PeerConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.conns[conn.remoteID]; ok && current == conn {
		delete(m.conns, conn.remoteID)
	}
}

// snapshot returns all registered connections.
func (m *Manager) snapshot() []*PeerConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns := make([]*PeerConnection, 0, len(m.conns))
	for _, conn := range m.conns {
		conns = append(conns, conn)
	}
	return conns
}
