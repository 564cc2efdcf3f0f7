package server

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// InitializeSchedules starts all the cron jobs (currently just the
// idle-session reaper)
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	c := cron.New()
	var reapJob cron.Job
	reapJob = cron.FuncJob(func() { serverHandler.reapIdleSessions() })
	reapJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(reapJob) //ensure we don't kick off another if old one is still running
	c.AddJob(fmt.Sprintf("@every %dm", serverHandler.ServerConfig.ReaperInterval), reapJob)
	Logger.Info("Adding idle-session reaper",
		"interval_minutes", serverHandler.ServerConfig.ReaperInterval,
		"ttl_minutes", serverHandler.ServerConfig.SessionTTL)
	c.Start()
	return c
}

// reapIdleSessions closes sessions that have not served a request
// within the configured TTL, freeing their document handles and cache
// memory.
func (serverHandler *ServerHandler) reapIdleSessions() {
	cutoff := time.Now().Add(-time.Duration(serverHandler.ServerConfig.SessionTTL) * time.Minute)

	serverHandler.mu.Lock()
	var idle []*documentSession
	for id, doc := range serverHandler.sessions {
		if doc.idleSince().Before(cutoff) {
			idle = append(idle, doc)
			delete(serverHandler.sessions, id)
		}
	}
	serverHandler.mu.Unlock()

	for _, doc := range idle {
		Logger.Info("Reaping idle document session", "id", doc.id, "idleSince", doc.idleSince())
		serverHandler.closeSession(doc)
	}
}
