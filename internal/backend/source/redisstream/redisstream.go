// Package redisstream implements a frame-log source reading the frame-log
// Redis Stream published by the ChirpStack Network Server.
package redisstream

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/framelog"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/storage"
)

const readErrorRetryInterval = time.Second

// Source implements the Redis Stream frame-log source.
type Source struct {
	sync.RWMutex

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	client redis.UniversalClient
	config config.RedisStream
	lastID string

	frameLogChan chan framelog.FrameLog
}

// New creates a new Redis Stream source, using the storage Redis client.
// Reading starts immediately.
func New(c config.RedisStream) (*Source, error) {
	return NewWithClient(storage.RedisClient(), c)
}

// NewWithClient creates a new Redis Stream source using the given client.
func NewWithClient(client redis.UniversalClient, c config.RedisStream) (*Source, error) {
	if client == nil {
		return nil, errors.New("redis client is not configured")
	}
	if c.Key == "" {
		return nil, errors.New("stream key must be set")
	}

	s := Source{
		client:       client,
		config:       c,
		lastID:       c.StartID,
		frameLogChan: make(chan framelog.FrameLog),
	}
	if s.lastID == "" {
		s.lastID = "$"
	}
	if s.config.Count == 0 {
		s.config.Count = 10
	}
	// a zero block duration would block forever and never observe Close
	if s.config.Block <= 0 {
		s.config.Block = time.Second
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	log.WithFields(log.Fields{
		"key":      s.config.Key,
		"start_id": s.lastID,
	}).Info("source/redis_stream: reading frame-log stream")

	s.wg.Add(1)
	go s.readLoop()

	return &s, nil
}

// FrameLogChan returns the frame-log channel.
func (s *Source) FrameLogChan() chan framelog.FrameLog {
	return s.frameLogChan
}

// LastID returns the ID of the last read stream entry.
func (s *Source) LastID() string {
	s.RLock()
	defer s.RUnlock()
	return s.lastID
}

// Close stops reading the stream and closes the frame-log channel.
func (s *Source) Close() error {
	log.Info("source/redis_stream: closing source")
	s.cancel()
	s.wg.Wait()
	close(s.frameLogChan)
	return nil
}

func (s *Source) readLoop() {
	defer s.wg.Done()

	if err := s.resolveStartID(); err != nil {
		log.WithError(err).WithField("key", s.config.Key).Error("source/redis_stream: resolve start id error")
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		streams, err := s.client.XRead(s.ctx, &redis.XReadArgs{
			Streams: []string{s.config.Key, s.LastID()},
			Count:   s.config.Count,
			Block:   s.config.Block,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}

			readErrorCounter().Inc()
			log.WithError(err).WithField("key", s.config.Key).Error("source/redis_stream: read stream error, will retry in 1s")

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(readErrorRetryInterval):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if !s.handleMessage(msg) {
					return
				}
			}
		}
	}
}

// resolveStartID replaces the $ start ID by the ID of the last entry in the
// stream. Re-using $ for every read would skip the entries added in between
// two reads.
func (s *Source) resolveStartID() error {
	if s.LastID() != "$" {
		return nil
	}

	msgs, err := s.client.XRevRangeN(s.ctx, s.config.Key, "+", "-", 1).Result()
	if err != nil {
		return errors.Wrap(err, "xrevrange error")
	}

	s.Lock()
	defer s.Unlock()

	if len(msgs) == 0 {
		s.lastID = "0"
	} else {
		s.lastID = msgs[0].ID
	}

	return nil
}

// handleMessage returns false when the source was closed while handing the
// frame-log over.
func (s *Source) handleMessage(msg redis.XMessage) bool {
	s.Lock()
	s.lastID = msg.ID
	s.Unlock()

	for k, v := range msg.Values {
		var b []byte
		switch v := v.(type) {
		case string:
			b = []byte(v)
		case []byte:
			b = v
		default:
			entryCounter(k, "error").Inc()
			log.WithFields(log.Fields{
				"id":  msg.ID,
				"key": k,
			}).Error("source/redis_stream: unexpected value type")
			continue
		}

		fl, err := framelog.UnmarshalStreamEntry(msg.ID, k, b)
		if err != nil {
			entryCounter(k, "error").Inc()
			log.WithError(err).WithFields(log.Fields{
				"id":  msg.ID,
				"key": k,
			}).Error("source/redis_stream: unmarshal frame-log error")
			continue
		}

		entryCounter(k, "ok").Inc()

		select {
		case s.frameLogChan <- fl:
		case <-s.ctx.Done():
			return false
		}
	}

	return true
}
