// Package service routes committed records to the metadata services named by
// processing directives.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/pkg/errors"
)

const (
	TransformationKey = "marctoxctransformation"
	AggregationKey    = "marcaggregation"
)

// OutputRecord is produced by a service for one input record.
type OutputRecord struct {
	InputID       int64
	OAIIdentifier string
	// XML is the serialized output, empty for services that only match.
	XML []byte
	// Matches are the previously processed records the input matched.
	Matches []int64
}

type Service interface {
	// Validate reports whether the service is ready to process records.
	Validate() error
	Transform(ctx context.Context, in []models.Record) ([]OutputRecord, error)
}

type UnknownServiceError struct {
	Key string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("no service registered for %q", e.Key)
}

// Registry maps service keys to services.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register validates svc and stores it under key.
func (r *Registry) Register(key string, svc Service) error {
	if err := svc.Validate(); err != nil {
		return errors.Wrapf(err, "service %s is invalid", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[key]; ok {
		return errors.Errorf("service %s is already registered", key)
	}
	r.services[key] = svc
	return nil
}

func (r *Registry) Get(key string) (Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[key]
	if !ok {
		return nil, &UnknownServiceError{Key: key}
	}
	return svc, nil
}

func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.services))
	for k := range r.services {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
