package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cafe_pos_backend/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declaredName string
	declaredKind string
	durable      bool
	declareErr   error
	publishErr   error
	published    []publishedMessage
	closed       bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declaredName, f.declaredKind, f.durable = name, kind, durable
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMessage{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_DeclaresDurableTopicExchange(t *testing.T) {
	ch := &fakeChannel{}
	_, err := NewPublisher(ch, "cafe_pos.events")
	require.NoError(t, err)
	require.Equal(t, "cafe_pos.events", ch.declaredName)
	require.Equal(t, "topic", ch.declaredKind)
	require.True(t, ch.durable)

	_, err = NewPublisher(&fakeChannel{declareErr: errors.New("access refused")}, "x")
	require.ErrorContains(t, err, "declaring exchange x")
}

func TestPublisher_RoutesByEventKind(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewPublisher(ch, "cafe_pos.events")
	require.NoError(t, err)

	productID := int64(3)
	alert := models.StockAlertEvent{Alert: models.StockAlert{
		ProductID: &productID,
		AlertType: models.StockAlertLow,
		Quantity:  decimal.NewFromInt(2),
		MinStock:  decimal.NewFromInt(5),
	}}
	require.NoError(t, p.Notify(context.Background(), alert))

	require.Len(t, ch.published, 1)
	sent := ch.published[0]
	require.Equal(t, "cafe_pos.events", sent.exchange)
	require.Equal(t, "stock_alert", sent.key)
	require.Equal(t, "application/json", sent.msg.ContentType)
	require.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)

	var envelope struct {
		Type    models.EventKind       `json:"type"`
		Payload models.StockAlertEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(sent.msg.Body, &envelope))
	require.Equal(t, models.EventStockAlert, envelope.Type)
	require.Equal(t, models.StockAlertLow, envelope.Payload.Alert.AlertType)
	require.Equal(t, int64(3), *envelope.Payload.Alert.ProductID)

	require.NoError(t, p.Close())
	require.True(t, ch.closed)
}

func TestPublisher_WrapsPublishFailure(t *testing.T) {
	cause := errors.New("channel closed")
	p, err := NewPublisher(&fakeChannel{publishErr: cause}, "cafe_pos.events")
	require.NoError(t, err)

	err = p.Notify(context.Background(), models.OrderCreatedEvent{})
	require.ErrorIs(t, err, cause)
	require.ErrorContains(t, err, "publishing order_created")
}
