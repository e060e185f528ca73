package shared

import (
	"testing"
	"time"
)

func TestRunConfig_Timeout(t *testing.T) {
	tests := []struct {
		name  string
		hertz float64
		want  time.Duration
	}{
		{
			name:  "4hz is a quarter second",
			hertz: 4,
			want:  250 * time.Millisecond,
		},
		{
			name:  "8hz",
			hertz: 8,
			want:  125 * time.Millisecond,
		},
		{
			name:  "16hz is 62.5ms",
			hertz: 16,
			want:  62500 * time.Microsecond,
		},
		{
			name:  "1hz is a full second",
			hertz: 1,
			want:  time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := RunConfig{Hertz: tt.hertz, PayloadSize: 50}
			if got := cfg.Timeout(); got != tt.want {
				t.Errorf("Timeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RunConfig
		wantErr bool
	}{
		{
			name: "valid reference entry",
			cfg:  RunConfig{Hertz: 4, PayloadSize: 50},
		},
		{
			name: "payload exactly the sequence header",
			cfg:  RunConfig{Hertz: 4, PayloadSize: SeqBytes},
		},
		{
			name:    "payload smaller than sequence header",
			cfg:     RunConfig{Hertz: 4, PayloadSize: SeqBytes - 1},
			wantErr: true,
		},
		{
			name:    "zero rate",
			cfg:     RunConfig{Hertz: 0, PayloadSize: 50},
			wantErr: true,
		},
		{
			name:    "negative rate",
			cfg:     RunConfig{Hertz: -4, PayloadSize: 50},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStat_LossPct(t *testing.T) {
	tests := []struct {
		name string
		stat Stat
		want float64
	}{
		{
			name: "no round trips yet",
			stat: Stat{},
			want: 0,
		},
		{
			name: "no losses",
			stat: Stat{Sent: 100},
			want: 0,
		},
		{
			name: "half lost",
			stat: Stat{Sent: 100, Missed: 50},
			want: 50,
		},
		{
			name: "all lost",
			stat: Stat{Sent: 100, Missed: 100},
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stat.LossPct(); got != tt.want {
				t.Errorf("LossPct() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutcome_String(t *testing.T) {
	if got := OutcomeDelivered.String(); got != "delivered" {
		t.Errorf("OutcomeDelivered.String() = %v, want delivered", got)
	}
	if got := OutcomeMissed.String(); got != "missed" {
		t.Errorf("OutcomeMissed.String() = %v, want missed", got)
	}
	if got := Outcome(99).String(); got != "unknown" {
		t.Errorf("Outcome(99).String() = %v, want unknown", got)
	}
}

func TestRunConfig_Label(t *testing.T) {
	cfg := RunConfig{ID: 3, Hertz: 16, PayloadSize: 200}
	if got := cfg.Label(); got != "16hz/200B" {
		t.Errorf("Label() = %v, want 16hz/200B", got)
	}
}
