// Package repository provides persistence access for doctors and
// appointments on top of the tree store.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"clinicbook/internal/models"
	"clinicbook/internal/treedb"
)

const doctorsDir = "/doctors"

// Doctors reads and writes doctor records, with an optional Redis
// read-through cache in front of the store.
type Doctors struct {
	store    treedb.Store
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *zerolog.Logger
}

// NewDoctors creates a doctor repository backed by store.
func NewDoctors(store treedb.Store, logger *zerolog.Logger) *Doctors {
	return &Doctors{store: store, logger: logger}
}

// UseRedisCache configures optional Redis caching for doctor reads.
func (r *Doctors) UseRedisCache(client *redis.Client, ttl time.Duration) {
	r.redis = client
	r.cacheTTL = ttl
}

func doctorPath(id string) string {
	return doctorsDir + "/" + id
}

func doctorCacheKey(id string) string {
	return "clinicbook:doctor:" + id
}

// GetDoctorByID returns the doctor record, or nil (no error) when the
// doctor does not exist or carries no usable schedule.
func (r *Doctors) GetDoctorByID(ctx context.Context, id string) (*models.Doctor, error) {
	var doctor models.Doctor

	if r.readCache(ctx, doctorCacheKey(id), &doctor) {
		if !doctor.Availability.HasUsableSchedule() {
			return nil, nil
		}
		return &doctor, nil
	}

	err := r.store.Get(ctx, doctorPath(id), &doctor)
	if errors.Is(err, treedb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor %s: %w", id, err)
	}

	r.writeCache(ctx, doctorCacheKey(id), doctor)

	if !doctor.Availability.HasUsableSchedule() {
		return nil, nil
	}
	return &doctor, nil
}

// PutDoctor creates or replaces a doctor record.
func (r *Doctors) PutDoctor(ctx context.Context, doctor *models.Doctor) error {
	if doctor.ID == "" {
		return errors.New("doctor id is required")
	}
	if err := r.store.Set(ctx, doctorPath(doctor.ID), doctor); err != nil {
		return fmt.Errorf("put doctor %s: %w", doctor.ID, err)
	}
	r.invalidate(ctx, doctorCacheKey(doctor.ID))
	return nil
}

// SetAvailability replaces the availability of an existing doctor and
// stamps LastUpdated. Returns treedb.ErrNotFound for unknown doctors.
func (r *Doctors) SetAvailability(ctx context.Context, id string, availability *models.Availability) error {
	var doctor models.Doctor
	if err := r.store.Get(ctx, doctorPath(id), &doctor); err != nil {
		if errors.Is(err, treedb.ErrNotFound) {
			return treedb.ErrNotFound
		}
		return fmt.Errorf("get doctor %s: %w", id, err)
	}

	availability.LastUpdated = time.Now().UTC()
	doctor.Availability = availability

	if err := r.store.Update(ctx, doctorPath(id), &doctor); err != nil {
		return fmt.Errorf("update doctor %s: %w", id, err)
	}
	r.invalidate(ctx, doctorCacheKey(id))
	return nil
}

// ListDoctors returns all doctor records, including ones without a
// usable schedule.
func (r *Doctors) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	children, err := r.store.Children(ctx, doctorsDir)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	doctors := make([]models.Doctor, 0, len(children))
	for id, raw := range children {
		var doctor models.Doctor
		if err := json.Unmarshal(raw, &doctor); err != nil {
			return nil, fmt.Errorf("decode doctor %s: %w", id, err)
		}
		doctors = append(doctors, doctor)
	}
	return doctors, nil
}

func (r *Doctors) readCache(ctx context.Context, key string, out any) bool {
	if r.redis == nil || r.cacheTTL <= 0 {
		return false
	}
	val, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (r *Doctors) writeCache(ctx context.Context, key string, val any) {
	if r.redis == nil || r.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, key, data, r.cacheTTL).Err(); err != nil {
		r.logger.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

func (r *Doctors) invalidate(ctx context.Context, key string) {
	if r.redis == nil {
		return
	}
	if err := r.redis.Del(ctx, key).Err(); err != nil {
		r.logger.Debug().Err(err).Str("key", key).Msg("Cache invalidation failed")
	}
}
