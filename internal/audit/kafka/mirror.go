// Package kafka fans security-relevant audit entries out to a SIEM topic.
// The mirror is best-effort by design: the Postgres/in-memory trail is the
// source of truth and stays fail-closed, while SIEM delivery may lag or drop
// under broker outages without ever blocking a grant or a read.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"shelteraccess/internal/audit"
)

// Actions worth alerting on. Routine grants and accesses stay out of the
// security topic; compliance reads them from the primary trail.
var mirroredActions = map[audit.Action]struct{}{
	audit.ActionDenied:  {},
	audit.ActionRevoked: {},
	audit.ActionExpired: {},
}

// Mirror buffers entries on a channel and produces them from a single
// background goroutine. Publish never blocks; a full buffer drops the entry
// and counts the drop.
type Mirror struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	inbox  chan audit.Entry
}

func NewMirror(client *kgo.Client, topic string, logger *slog.Logger, buffer int) *Mirror {
	if buffer <= 0 {
		buffer = 256
	}
	return &Mirror{
		client: client,
		topic:  topic,
		logger: logger,
		inbox:  make(chan audit.Entry, buffer),
	}
}

// EnsureTopic creates the security topic when missing so first-boot
// deployments do not silently drop mirrored entries.
func (m *Mirror) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(m.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, m.topic)
	if err != nil {
		return err
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return res.Err
		}
	}
	return nil
}

// Publish enqueues an entry if its action is security-relevant.
func (m *Mirror) Publish(entry audit.Entry) {
	if _, ok := mirroredActions[entry.Action]; !ok {
		return
	}
	select {
	case m.inbox <- entry:
	default:
		m.logger.Warn("audit mirror buffer full, dropping entry",
			"entry_id", entry.EntryID.String(),
			"action", string(entry.Action),
		)
	}
}

// Run drains the inbox until ctx is cancelled. Produce failures are logged
// and the entry is dropped; the primary trail already holds it.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry := <-m.inbox:
			payload, err := json.Marshal(entry)
			if err != nil {
				m.logger.Error("marshal mirrored audit entry",
					"entry_id", entry.EntryID.String(),
					"error", err.Error(),
				)
				continue
			}
			record := &kgo.Record{
				Topic: m.topic,
				Key:   []byte(entry.UserID),
				Value: payload,
			}
			if err := m.client.ProduceSync(ctx, record).FirstErr(); err != nil {
				m.logger.Error("produce mirrored audit entry",
					"entry_id", entry.EntryID.String(),
					"error", err.Error(),
				)
			}
		}
	}
}
