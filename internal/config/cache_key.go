package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionAnalysisKey returns the cache key holding the AI performance analysis of a session.
func (r *CacheKeyStruct) SessionAnalysisKey(sessionID string) string {
	return fmt.Sprintf("exam:%s:analysis", sessionID)
}

// SessionExplanationsKey returns the hash key holding per-question AI explanations.
func (r *CacheKeyStruct) SessionExplanationsKey(sessionID string) string {
	return fmt.Sprintf("exam:%s:explanations", sessionID)
}

// SessionEventsChannel returns the Redis PubSub channel streaming a session's snapshots.
func (r *CacheKeyStruct) SessionEventsChannel(sessionID string) string {
	return fmt.Sprintf("exam:%s:events", sessionID)
}

var CacheKey = NewCacheKeyStruct()
