package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "crawl-events", map[string]string{"type": "job.completed"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	id, err = p.Publish(context.Background(), "crawl-events", map[string]string{"type": "article.saved"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id)

	messages := p.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "crawl-events", messages[0].Topic)
}
