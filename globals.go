package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	InfoLog  *log.Logger
	ErrorLog *log.Logger

	ipLimiters = make(map[string]*ipLimiter)
	ipLock     sync.Mutex
)

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func setupLogging() {
	logDir := "./logs"
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		os.Mkdir(logDir, 0755)
	}
	fInfo, _ := os.OpenFile(filepath.Join(logDir, "server.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	fErr, _ := os.OpenFile(filepath.Join(logDir, "error.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	InfoLog = log.New(io.MultiWriter(os.Stdout, fInfo), "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLog = log.New(io.MultiWriter(os.Stderr, fErr), "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// getLimiter hands out one token bucket per client IP. 10 req/s with a
// burst of 20 stays out of the way of a polling agent but stops floods.
func getLimiter(ip string) *rate.Limiter {
	ipLock.Lock()
	defer ipLock.Unlock()
	entry, ok := ipLimiters[ip]
	if !ok {
		entry = &ipLimiter{lim: rate.NewLimiter(10, 20)}
		ipLimiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.lim
}

// sweepLimiters drops buckets idle for over ten minutes so the map does
// not grow with every address that ever connected.
func sweepLimiters() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		ipLock.Lock()
		for ip, entry := range ipLimiters {
			if entry.lastSeen.Before(cutoff) {
				delete(ipLimiters, ip)
			}
		}
		ipLock.Unlock()
	}
}
