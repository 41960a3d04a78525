// Package eventstreamutils selects an eventstream.Publisher from configuration.
package eventstreamutils

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/drift/pkg/eventstream"
	"github.com/papercomputeco/drift/pkg/eventstream/kafka"
	"github.com/papercomputeco/drift/pkg/eventstream/nop"
	"github.com/papercomputeco/drift/pkg/eventstream/sqlite"
)

const (
	ProviderNone   = "none"
	ProviderKafka  = "kafka"
	ProviderSQLite = "sqlite"
)

type NewPublisherOpts struct {
	// ProviderType is one of "none", "kafka" or "sqlite". Empty means "none".
	ProviderType string

	// Target is a comma separated list of Kafka brokers.
	Target string
	Topic  string

	// SQLitePath is the journal database file.
	SQLitePath string
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", ProviderNone:
		return nop.NewPublisher(), nil
	case ProviderKafka:
		return kafka.NewPublisher(kafka.Config{
			Brokers: splitBrokers(o.Target),
			Topic:   o.Topic,
		})
	case ProviderSQLite:
		if o.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite journal requires a database path")
		}
		return sqlite.NewPublisher(o.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported journal provider: %s", o.ProviderType)
	}
}

func splitBrokers(target string) []string {
	var brokers []string
	for b := range strings.SplitSeq(target, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
