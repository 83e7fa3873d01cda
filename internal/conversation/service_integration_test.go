package conversation_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NahuelRC/CallCenter/internal/conversation"
)

type conversationFixture struct {
	svc   *conversation.Service
	pool  *pgxpool.Pool
	phone string
}

func setupConversationIntegrationTest(t *testing.T) conversationFixture {
	t.Helper()

	dsn := os.Getenv("CALLCENTER_TEST_DSN")
	if dsn == "" {
		t.Skip("skip integration test: CALLCENTER_TEST_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}

	phone := fmt.Sprintf("+549341%07d", time.Now().UnixNano()%10000000)
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM conversation_messages WHERE phone = $1`, phone)
		_, _ = pool.Exec(ctx, `DELETE FROM conversations WHERE phone = $1`, phone)
		pool.Close()
	})

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return conversationFixture{
		svc:   conversation.NewService(pool, logger),
		pool:  pool,
		phone: phone,
	}
}

func TestAppendMessageOrdering(t *testing.T) {
	fx := setupConversationIntegrationTest(t)
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		_, err := fx.svc.AppendMessage(ctx, conversation.AppendRequest{
			Phone:  fx.phone,
			Role:   "user",
			Source: "twilio",
			Body:   fmt.Sprintf("mensaje %d", i),
		})
		require.NoError(t, err)
	}

	thread, err := fx.svc.GetThread(ctx, fx.phone)
	require.NoError(t, err)
	require.Len(t, thread.Messages, n)
	for i, msg := range thread.Messages {
		assert.Equal(t, fmt.Sprintf("mensaje %d", i), msg.Body)
	}
	assert.Equal(t, fmt.Sprintf("mensaje %d", n-1), thread.LastMessage)
	assert.Equal(t, thread.Messages[n-1].CreatedAt, thread.LastMessageAt)

	threads, err := fx.svc.ListThreads(ctx)
	require.NoError(t, err)
	found := false
	for _, th := range threads {
		if th.Phone == fx.phone {
			found = true
			assert.Equal(t, thread.LastMessage, th.LastMessage)
		}
	}
	assert.True(t, found, "thread must appear in the listing")
}

func TestAppendMessageNotIdempotent(t *testing.T) {
	fx := setupConversationIntegrationTest(t)
	ctx := context.Background()

	req := conversation.AppendRequest{
		Phone:  fx.phone,
		Role:   "agent",
		Source: "bot",
		Body:   "respuesta",
	}
	first, err := fx.svc.AppendMessage(ctx, req)
	require.NoError(t, err)
	second, err := fx.svc.AppendMessage(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	thread, err := fx.svc.GetThread(ctx, fx.phone)
	require.NoError(t, err)
	assert.Len(t, thread.Messages, 2)
}

func TestAppendMessageMediaPlaceholder(t *testing.T) {
	fx := setupConversationIntegrationTest(t)
	ctx := context.Background()

	_, err := fx.svc.AppendMessage(ctx, conversation.AppendRequest{
		Phone:  fx.phone,
		Role:   "user",
		Source: "twilio",
		Media:  []conversation.Media{{URL: "https://res.cloudinary.com/demo/image/upload/a.jpg", ContentType: "image/jpeg"}},
	})
	require.NoError(t, err)

	thread, err := fx.svc.GetThread(ctx, fx.phone)
	require.NoError(t, err)
	assert.Equal(t, "[media]", thread.LastMessage)
	require.Len(t, thread.Messages, 1)
	require.Len(t, thread.Messages[0].Media, 1)
	assert.Equal(t, "image/jpeg", thread.Messages[0].Media[0].ContentType)
}
