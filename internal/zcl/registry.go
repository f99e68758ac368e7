package zcl

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the cluster definitions a device serves.
type Registry struct {
	mu       sync.RWMutex
	clusters map[uint16]*ClusterDef
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		clusters: make(map[uint16]*ClusterDef),
		logger:   logger,
	}
}

// Register adds a cluster definition. Registering an ID twice merges the
// second definition into the first.
func (r *Registry) Register(c ClusterDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := fmt.Sprintf("0x%04X", c.ID)
	if existing, ok := r.clusters[c.ID]; ok {
		existing.merge(&c)
		r.logger.Debug("cluster merged", "id", id, "name", existing.Name)
		return
	}
	r.clusters[c.ID] = c.clone()
	r.logger.Debug("cluster registered", "id", id, "name", c.Name,
		"attributes", len(c.Attributes), "commands", len(c.Commands))
}

// Get returns a copy of a cluster definition, or nil if not found.
func (r *Registry) Get(id uint16) *ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.clusters[id]; c != nil {
		return c.clone()
	}
	return nil
}

// Attribute returns a copy of one attribute definition, or nil if either the
// cluster or the attribute is unknown.
func (r *Registry) Attribute(clusterID, attrID uint16) *AttributeDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clusters[clusterID]
	if c == nil {
		return nil
	}
	a := c.FindAttribute(attrID)
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// CommandName returns the registered name of a cluster command, or its ID in
// hex when the command is unknown.
func (r *Registry) CommandName(clusterID uint16, cmdID uint8) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.clusters[clusterID]; c != nil {
		if cmd := c.FindCommand(cmdID); cmd != nil {
			return cmd.Name
		}
	}
	return fmt.Sprintf("0x%02X", cmdID)
}

// All returns copies of every registered definition ordered by cluster ID.
func (r *Registry) All() []ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ClusterDef, 0, len(r.clusters))
	for _, c := range r.clusters {
		result = append(result, *c.clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
