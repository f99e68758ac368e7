package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"zigbee-color-light/internal/zcl"
)

var (
	bucketEndpoints  = []byte("endpoints")
	bucketAttributes = []byte("attributes")
)

type cacheKey struct {
	endpoint  uint8
	clusterID uint16
	attrID    uint16
}

// attrKey builds the bucket key: endpoint, cluster ID and attribute ID,
// big-endian so cursor order follows endpoint then cluster then attribute.
func attrKey(k cacheKey) []byte {
	key := make([]byte, 5)
	key[0] = k.endpoint
	binary.BigEndian.PutUint16(key[1:3], k.clusterID)
	binary.BigEndian.PutUint16(key[3:5], k.attrID)
	return key
}

func parseAttrKey(key []byte) (cacheKey, bool) {
	if len(key) != 5 {
		return cacheKey{}, false
	}
	return cacheKey{
		endpoint:  key[0],
		clusterID: binary.BigEndian.Uint16(key[1:3]),
		attrID:    binary.BigEndian.Uint16(key[3:5]),
	}, true
}

// BoltStore implements Store using BoltDB. Attribute types come from the ZCL
// registry; values are held in memory and written through to the database.
type BoltStore struct {
	db       *bolt.DB
	registry *zcl.Registry

	mu    sync.RWMutex
	cache map[cacheKey]attributeRecord
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string, registry *zcl.Registry) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketEndpoints, bucketAttributes} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	s := &BoltStore{db: db, registry: registry, cache: make(map[cacheKey]attributeRecord)}
	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	return s, nil
}

func (s *BoltStore) load() error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAttributes).ForEach(func(k, v []byte) error {
			key, ok := parseAttrKey(k)
			if !ok {
				return fmt.Errorf("malformed attribute key %X", k)
			}
			var rec attributeRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("attribute %X: %w", k, err)
			}
			s.cache[key] = rec
			return nil
		})
	})
}

func (s *BoltStore) ReadAttribute(endpoint uint8, clusterID, attrID uint16) (interface{}, error) {
	if s.registry.Attribute(clusterID, attrID) == nil {
		return nil, fmt.Errorf("cluster 0x%04X attribute 0x%04X: %w", clusterID, attrID, ErrUnsupportedAttribute)
	}
	s.mu.RLock()
	rec, ok := s.cache[cacheKey{endpoint, clusterID, attrID}]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("endpoint %d attribute 0x%04X: %w", endpoint, attrID, ErrNotFound)
	}
	v, _, err := zcl.DecodeValue(rec.Type, rec.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attribute 0x%04X: %w", attrID, err)
	}
	return v, nil
}

func (s *BoltStore) WriteAttribute(endpoint uint8, clusterID, attrID uint16, value interface{}) error {
	def := s.registry.Attribute(clusterID, attrID)
	if def == nil {
		return fmt.Errorf("cluster 0x%04X attribute 0x%04X: %w", clusterID, attrID, ErrUnsupportedAttribute)
	}
	data, err := zcl.EncodeValue(def.Type, value)
	if err != nil {
		return fmt.Errorf("encode attribute 0x%04X: %w", attrID, err)
	}

	key := cacheKey{endpoint, clusterID, attrID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.cache[key]; ok && old.Type == def.Type && bytes.Equal(old.Data, data) {
		return nil
	}

	rec := attributeRecord{Type: def.Type, Data: data, UpdatedAt: time.Now()}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketEndpoints).Get([]byte{endpoint}) == nil {
			return fmt.Errorf("endpoint %d: %w", endpoint, ErrNotFound)
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAttributes).Put(attrKey(key), raw)
	})
	if err != nil {
		return err
	}
	s.cache[key] = rec
	return nil
}

func (s *BoltStore) InitEndpoint(endpoint uint8, clusterID uint16, initial map[uint16]interface{}) error {
	cluster := s.registry.Get(clusterID)
	if cluster == nil {
		return fmt.Errorf("cluster 0x%04X: %w", clusterID, ErrNotFound)
	}

	now := time.Now()
	added := make(map[cacheKey]attributeRecord)

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bolt.Tx) error {
		eb := tx.Bucket(bucketEndpoints)
		var ep endpointRecord
		if data := eb.Get([]byte{endpoint}); data != nil {
			if err := json.Unmarshal(data, &ep); err != nil {
				return err
			}
		} else {
			ep = endpointRecord{ID: endpoint, CreatedAt: now}
		}
		if !containsCluster(ep.Clusters, clusterID) {
			ep.Clusters = append(ep.Clusters, clusterID)
			sort.Slice(ep.Clusters, func(i, j int) bool { return ep.Clusters[i] < ep.Clusters[j] })
		}
		raw, err := json.Marshal(ep)
		if err != nil {
			return err
		}
		if err := eb.Put([]byte{endpoint}, raw); err != nil {
			return err
		}

		ab := tx.Bucket(bucketAttributes)
		for _, attr := range cluster.Attributes {
			key := cacheKey{endpoint, clusterID, attr.ID}
			if ab.Get(attrKey(key)) != nil {
				continue
			}
			value, ok := initial[attr.ID]
			if !ok {
				value = attr.Default
			}
			if value == nil {
				continue
			}
			data, err := zcl.EncodeValue(attr.Type, value)
			if err != nil {
				return fmt.Errorf("attribute %s: %w", attr.Name, err)
			}
			rec := attributeRecord{Type: attr.Type, Data: data, UpdatedAt: now}
			raw, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := ab.Put(attrKey(key), raw); err != nil {
				return err
			}
			added[key] = rec
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("init endpoint %d: %w", endpoint, err)
	}
	for k, rec := range added {
		s.cache[k] = rec
	}
	return nil
}

func containsCluster(ids []uint16, id uint16) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}
	return false
}

func (s *BoltStore) Endpoint(endpoint uint8) (*Endpoint, error) {
	var rec endpointRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEndpoints).Get([]byte{endpoint})
		if data == nil {
			return fmt.Errorf("endpoint %d: %w", endpoint, ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}

	ep := &Endpoint{ID: rec.ID, Clusters: rec.Clusters, CreatedAt: rec.CreatedAt}
	s.mu.RLock()
	for k, r := range s.cache {
		if k.endpoint != endpoint {
			continue
		}
		attr := Attribute{ClusterID: k.clusterID, ID: k.attrID, Type: zcl.TypeName(r.Type), UpdatedAt: r.UpdatedAt}
		if def := s.registry.Attribute(k.clusterID, k.attrID); def != nil {
			attr.Name = def.Name
		}
		if v, _, err := zcl.DecodeValue(r.Type, r.Data); err == nil {
			attr.Value = v
		}
		ep.Attributes = append(ep.Attributes, attr)
	}
	s.mu.RUnlock()

	sort.Slice(ep.Attributes, func(i, j int) bool {
		a, b := ep.Attributes[i], ep.Attributes[j]
		if a.ClusterID != b.ClusterID {
			return a.ClusterID < b.ClusterID
		}
		return a.ID < b.ID
	})
	return ep, nil
}

func (s *BoltStore) DeleteEndpoint(endpoint uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketEndpoints).Delete([]byte{endpoint}); err != nil {
			return err
		}
		b := tx.Bucket(bucketAttributes)
		c := b.Cursor()
		prefix := []byte{endpoint}
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete endpoint %d: %w", endpoint, err)
	}
	for k := range s.cache {
		if k.endpoint == endpoint {
			delete(s.cache, k)
		}
	}
	return nil
}

func (s *BoltStore) ListEndpoints() ([]uint8, error) {
	var ids []uint8
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEndpoints)
		if b == nil {
			return nil // no bucket = no endpoints
		}
		return b.ForEach(func(k, _ []byte) error {
			if len(k) == 1 {
				ids = append(ids, k[0])
			}
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
