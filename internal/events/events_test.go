package events

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewTextHandler(&buf, nil)))

	ev := domain.FacilityRated{FacilityID: 7, OrderID: uuid.New(), Stars: 4, OccurredAt: time.Now()}
	require.NoError(t, p.Publish(context.Background(), ev))

	out := buf.String()
	assert.Contains(t, out, "name=facility.rated")
	assert.Contains(t, out, "key=7")
	assert.Contains(t, out, `\"stars\":4`)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	o := &domain.Order{ID: uuid.New(), CourtID: 1}

	_ = r.Publish(context.Background(), domain.NewOrderEvent(domain.EventOrderCreated, o, time.Now()))
	_ = r.Publish(context.Background(), domain.NewOrderEvent(domain.EventOrderConfirmed, o, time.Now()))

	assert.Equal(t, []string{domain.EventOrderCreated, domain.EventOrderConfirmed}, r.Names())
	assert.Equal(t, o.ID.String(), r.Events()[0].Key())
}

func TestKafkaTopic(t *testing.T) {
	ev := domain.FacilityRated{FacilityID: 1}

	assert.Equal(t, "badcourt.facility.rated", NewKafkaPublisher([]string{"localhost:9092"}, "badcourt").Topic(ev))
	assert.Equal(t, "facility.rated", NewKafkaPublisher([]string{"localhost:9092"}, "").Topic(ev))
}
