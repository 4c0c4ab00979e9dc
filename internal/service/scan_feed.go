package service

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/observability"
)

const scanFeedBufferSize = 16

// ScanFeed fans successful gate scans out to subscribed security dashboards.
// A slow subscriber drops events rather than blocking the scan path.
type ScanFeed struct {
	mu          sync.RWMutex
	subscribers map[chan dto.ScanResponse]struct{}
	logger      zerolog.Logger
}

// NewScanFeed builds an empty feed.
func NewScanFeed(logger zerolog.Logger) *ScanFeed {
	return &ScanFeed{
		subscribers: make(map[chan dto.ScanResponse]struct{}),
		logger:      logger.With().Str("component", "scan_feed").Logger(),
	}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away.
func (f *ScanFeed) Subscribe() (<-chan dto.ScanResponse, func()) {
	ch := make(chan dto.ScanResponse, scanFeedBufferSize)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	count := len(f.subscribers)
	f.mu.Unlock()

	observability.ScanFeedClients().Set(float64(count))

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		count := len(f.subscribers)
		f.mu.Unlock()

		observability.ScanFeedClients().Set(float64(count))
	}

	return ch, cancel
}

// ScanRecorded implements ScanObserver.
func (f *ScanFeed) ScanRecorded(scan dto.ScanResponse) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.subscribers {
		select {
		case ch <- scan:
		default:
			f.logger.Debug().Uint("outpass_id", scan.Outpass.ID).Msg("subscriber lagging, event dropped")
		}
	}
}
