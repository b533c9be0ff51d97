package ideas

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/catalog"
	"github.com/kalambet/partsbin/internal/logging"
)

type fakeGenerator struct {
	text   string
	err    error
	delay  time.Duration
	system string
	prompt string
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	f.system, f.prompt = system, prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func parts() []catalog.Component {
	return []catalog.Component{
		{PartNumber: "NE555", Type: "ic", Quantity: 2, Attributes: catalog.Attributes{"Function": "timer"}},
		{PartNumber: "LED-R5", Type: "led", Quantity: 10},
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(parts(), catalog.NewRegistry(nil))

	assert.Contains(t, p, "- 2 x IC NE555 (Function: timer)\n")
	assert.Contains(t, p, "- 10 x LED LED-R5\n")
	assert.Contains(t, p, "Suggest 3 to 5 projects")
}

func TestSuggest(t *testing.T) {
	gen := &fakeGenerator{text: "1. Blinker"}
	svc := NewService(gen, nil, catalog.NewRegistry(nil), Options{}, logging.Nop())

	text, err := svc.Suggest(context.Background(), parts())
	require.NoError(t, err)

	assert.Equal(t, "1. Blinker", text)
	assert.Equal(t, systemPrompt, gen.system)
	assert.Contains(t, gen.prompt, "NE555")
}

func TestSuggest_NoComponents(t *testing.T) {
	svc := NewService(&fakeGenerator{}, nil, catalog.NewRegistry(nil), Options{}, logging.Nop())

	_, err := svc.Suggest(context.Background(), nil)

	assert.True(t, apperror.Is(err, apperror.CodeInvalidInput))
}

func TestSuggest_MissingKey(t *testing.T) {
	_, genErr := NewGenerator(context.Background(), Options{Provider: ProviderOpenRouter})
	require.ErrorIs(t, genErr, ErrMissingAPIKey)

	svc := NewService(nil, genErr, catalog.NewRegistry(nil), Options{}, logging.Nop())
	assert.False(t, svc.Available())

	_, err := svc.Suggest(context.Background(), parts())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Contains(t, UserMessage(err), "No API key")
}

func TestSuggest_Timeout(t *testing.T) {
	gen := &fakeGenerator{text: "late", delay: time.Second}
	svc := NewService(gen, nil, catalog.NewRegistry(nil), Options{Timeout: 20 * time.Millisecond}, logging.Nop())

	_, err := svc.Suggest(context.Background(), parts())

	assert.True(t, apperror.Is(err, apperror.CodeUpstream))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, UserMessage(err), "timed out")
}

func TestSuggest_UpstreamError(t *testing.T) {
	gen := &fakeGenerator{err: &StatusError{Code: http.StatusUnauthorized, Body: "bad key"}}
	svc := NewService(gen, nil, catalog.NewRegistry(nil), Options{}, logging.Nop())

	_, err := svc.Suggest(context.Background(), parts())

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUpstream, appErr.Code)
	assert.Contains(t, appErr.Message, "API key was rejected")
}

func TestSuggestAsync(t *testing.T) {
	svc := NewService(&fakeGenerator{text: "ideas"}, nil, catalog.NewRegistry(nil), Options{}, logging.Nop())

	ch := svc.SuggestAsync(context.Background(), parts())

	select {
	case res, ok := <-ch:
		require.True(t, ok)
		require.NoError(t, res.Err)
		assert.Equal(t, "ideas", res.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("SuggestAsync did not deliver a result")
	}
	_, open := <-ch
	assert.False(t, open)
}

func TestSuggest_RateLimited(t *testing.T) {
	svc := NewService(&fakeGenerator{text: "ok"}, nil, catalog.NewRegistry(nil), Options{RatePerMinute: 1}, logging.Nop())

	_, err := svc.Suggest(context.Background(), parts())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = svc.Suggest(ctx, parts())
	assert.True(t, apperror.Is(err, apperror.CodeUpstream))
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	_, err := NewGenerator(context.Background(), Options{Provider: "carrier-pigeon", APIKey: "k"})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidInput))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrMissingAPIKey, "No API key"},
		{context.DeadlineExceeded, "timed out"},
		{&rateLimitError{status: 429}, "rate limiting"},
		{&StatusError{Code: http.StatusForbidden}, "API key was rejected"},
		{&StatusError{Code: http.StatusNotFound}, "model was not found"},
		{&StatusError{Code: 500, Body: "boom"}, "HTTP 500"},
		{&googleapi.Error{Code: http.StatusTooManyRequests}, "rate limiting"},
		{ErrEmptyResponse, "empty answer"},
		{errors.New("connection refused"), "connection refused"},
	}
	for _, tt := range tests {
		got := UserMessage(tt.err)
		if !strings.Contains(got, tt.want) {
			t.Errorf("UserMessage(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
	assert.Empty(t, UserMessage(nil))
}
