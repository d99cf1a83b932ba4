package riverconf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{
			name: "zero value is valid",
			opts: Options{},
		},
		{
			name: "all fields populated",
			opts: Options{
				Metadata:             map[string]string{"team": "billing"},
				InactivityTimeout:    5 * time.Minute,
				AbortTimeout:         15 * time.Minute,
				JournalRetention:     24 * time.Hour,
				IdempotencyRetention: time.Hour,
				RetryPolicy:          &RetryPolicy{MaxAttempts: 3},
			},
		},
		{
			name:    "negative inactivity timeout",
			opts:    Options{InactivityTimeout: -time.Second},
			wantErr: "inactivity timeout",
		},
		{
			name:    "negative abort timeout",
			opts:    Options{AbortTimeout: -time.Second},
			wantErr: "abort timeout",
		},
		{
			name:    "negative journal retention",
			opts:    Options{JournalRetention: -time.Hour},
			wantErr: "journal retention",
		},
		{
			name:    "negative idempotency retention",
			opts:    Options{IdempotencyRetention: -time.Hour},
			wantErr: "idempotency retention",
		},
		{
			name:    "invalid retry policy",
			opts:    Options{RetryPolicy: &RetryPolicy{Factor: 0.5}},
			wantErr: "retry factor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOptions)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServiceOptions_Validate(t *testing.T) {
	t.Parallel()

	t.Run("name required", func(t *testing.T) {
		t.Parallel()

		err := ServiceOptions{}.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidOptions)
		assert.Contains(t, err.Error(), "name is required")
	})

	t.Run("name must not contain whitespace", func(t *testing.T) {
		t.Parallel()

		err := ServiceOptions{Name: "billing service"}.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		err := ServiceOptions{Name: "billing", Description: "Invoices."}.Validate()
		assert.NoError(t, err)
	})

	t.Run("embedded options validated", func(t *testing.T) {
		t.Parallel()

		err := ServiceOptions{
			Name:    "billing",
			Options: Options{JournalRetention: -time.Hour},
		}.Validate()
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})
}

func TestHandlerOptions_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, HandlerOptions{}.Validate())
	assert.ErrorIs(t, HandlerOptions{Name: "bad name"}.Validate(), ErrInvalidOptions)
}

func TestHandlerOptions_WithDefaults(t *testing.T) {
	t.Parallel()

	t.Run("everything defaulted", func(t *testing.T) {
		t.Parallel()

		o := HandlerOptions{}.withDefaults("charge_card")

		assert.Equal(t, "charge_card", o.Name)
		assert.Equal(t, JSONSerde{}, o.InputSerde)
		assert.Equal(t, JSONSerde{}, o.OutputSerde)
		assert.Equal(t, "application/json", o.Accept)
		assert.Equal(t, "application/json", o.ContentType)
	})

	t.Run("explicit values preserved", func(t *testing.T) {
		t.Parallel()

		o := HandlerOptions{
			Name:       "custom",
			Accept:     "application/protobuf",
			InputSerde: RawSerde{},
		}.withDefaults("charge_card")

		assert.Equal(t, "custom", o.Name)
		assert.Equal(t, "application/protobuf", o.Accept)
		assert.Equal(t, RawSerde{}, o.InputSerde)
		// Output still defaults to JSON.
		assert.Equal(t, "application/json", o.ContentType)
	})

	t.Run("accept follows input serde", func(t *testing.T) {
		t.Parallel()

		o := HandlerOptions{InputSerde: RawSerde{}}.withDefaults("x")
		assert.Equal(t, "application/octet-stream", o.Accept)
	})
}

func TestServiceOptionsFromEnv(t *testing.T) {
	t.Setenv("BILLING_NAME", "billing")
	t.Setenv("BILLING_DESCRIPTION", "Invoice generation")
	t.Setenv("BILLING_INACTIVITY_TIMEOUT", "5m")
	t.Setenv("BILLING_JOURNAL_RETENTION", "168h")
	t.Setenv("BILLING_INGRESS_PRIVATE", "true")
	t.Setenv("BILLING_METADATA", "team:billing,tier:1")
	t.Setenv("BILLING_RETRY_MAX_ATTEMPTS", "10")
	t.Setenv("BILLING_RETRY_FACTOR", "1.5")

	o, err := ServiceOptionsFromEnv("BILLING_")
	require.NoError(t, err)

	assert.Equal(t, "billing", o.Name)
	assert.Equal(t, "Invoice generation", o.Description)
	assert.Equal(t, 5*time.Minute, o.InactivityTimeout)
	assert.Equal(t, 168*time.Hour, o.JournalRetention)
	require.NotNil(t, o.IngressPrivate)
	assert.True(t, *o.IngressPrivate)
	assert.Equal(t, map[string]string{"team": "billing", "tier": "1"}, o.Metadata)
	require.NotNil(t, o.RetryPolicy)
	assert.Equal(t, 10, o.RetryPolicy.MaxAttempts)
	assert.InDelta(t, 1.5, o.RetryPolicy.Factor, 0.001)
}

func TestServiceOptionsFromEnv_NoRetryPolicy(t *testing.T) {
	t.Setenv("SVC_NAME", "reports")

	o, err := ServiceOptionsFromEnv("SVC_")
	require.NoError(t, err)
	assert.Nil(t, o.RetryPolicy)
}

func TestServiceOptionsFromEnv_MissingName(t *testing.T) {
	t.Setenv("SVC_DESCRIPTION", "no name set")

	_, err := ServiceOptionsFromEnv("SVC_")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestServiceOptionsFromEnv_InvalidDuration(t *testing.T) {
	t.Setenv("SVC_NAME", "reports")
	t.Setenv("SVC_ABORT_TIMEOUT", "-1m")

	_, err := ServiceOptionsFromEnv("SVC_")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestHandlerOptionsFromEnv(t *testing.T) {
	t.Setenv("H_NAME", "charge_card")
	t.Setenv("H_ACCEPT", "application/protobuf")
	t.Setenv("H_IDEMPOTENCY_RETENTION", "1h")
	t.Setenv("H_RETRY_INITIAL_INTERVAL", "2s")

	o, err := HandlerOptionsFromEnv("H_")
	require.NoError(t, err)

	assert.Equal(t, "charge_card", o.Name)
	assert.Equal(t, "application/protobuf", o.Accept)
	assert.Equal(t, time.Hour, o.IdempotencyRetention)
	require.NotNil(t, o.RetryPolicy)
	assert.Equal(t, 2*time.Second, o.RetryPolicy.InitialInterval)
}
