package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"auditgelap-service/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-test",
		BaseURL: baseURL,
	})
}

// envelope wraps a structured payload the way generateContent returns it: as
// JSON text inside the first candidate part.
func envelope(t *testing.T, payload interface{}) []byte {
	t.Helper()

	text, err := json.Marshal(payload)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]string{{"text": string(text)}},
				},
				"finishReason": "STOP",
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestGenerateAuditDecodesStructuredReply(t *testing.T) {
	var gotPath string
	var gotReq geminiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Write(envelope(t, AuditOutput{
			DiagnosisTitle:     "DIAGNOSA: STAGNASI KRONIS",
			BrutalDiagnosis:    "Enam bulan jalan di tempat.",
			OpportunityCostIDR: 45000000,
			GrowthLossPct:      1.25,
			DarkAnalogy:        "Kapal bocor yang dicat ulang.",
			StrategicCommands:  []string{"Validasi harga ke 10 prospek", "Matikan fitur yang tidak dipakai"},
			Type:               "standard",
		}))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	out, err := client.GenerateAudit(context.Background(), AuditInput{
		SituationDetails: "Saya menunda launching 6 bulan",
		Lang:             "id",
		IsPremiumUser:    false,
	})
	require.NoError(t, err)

	assert.Equal(t, "DIAGNOSA: STAGNASI KRONIS", out.DiagnosisTitle)
	assert.Equal(t, int64(45000000), out.OpportunityCostIDR)
	assert.Len(t, out.StrategicCommands, 2)

	assert.Equal(t, "/models/gemini-test:generateContent", gotPath)
	require.Len(t, gotReq.Contents, 1)
	require.Len(t, gotReq.Contents[0].Parts, 1)
	assert.Contains(t, gotReq.Contents[0].Parts[0].Text, "Saya menunda launching 6 bulan")
	assert.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMIMEType)
}

func TestGenerateRetriesOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
			return
		}
		w.Write(envelope(t, AcknowledgeOutput{Message: "Satu kebocoran tertambal."}))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	out, err := client.AcknowledgeExecution(context.Background(), AcknowledgeInput{
		TaskTitle: "Validasi harga",
		UserName:  "Budi",
	})
	require.NoError(t, err)
	assert.Equal(t, "Satu kebocoran tertambal.", out.Message)
	assert.Equal(t, 2, calls)
}

func TestGenerateFailsFastOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"code":400,"message":"API key not valid"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.VerifyExecution(context.Background(), VerifyExecutionInput{
		TaskTitle:      "Validasi harga",
		ExecutionProof: "sudah selesai",
		UserName:       "Budi",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Equal(t, 1, calls, "client errors must not be retried")
}

func TestGenerateRetriesOnMalformedModelOutput(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// Valid envelope, but the candidate text is not the JSON the
			// prompt asked for.
			w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"not json"}]}}]}`))
			return
		}
		w.Write(envelope(t, WeeklyRoastOutput{
			Subject:        "LAPORAN KERUGIAN MINGGUAN",
			Opening:        "Senin pagi, delusi baru.",
			MathAnalysis:   "Rp 5.000.000 terbakar.",
			TheRoast:       "Tiga tugas, tiga alasan.",
			ClosingCommand: "Eksekusi, bukan wacana.",
		}))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	out, err := client.GenerateWeeklyRoast(context.Background(), WeeklyRoastInput{
		UserName:          "Budi",
		TotalLossThisWeek: 5000000,
		CurrentRole:       "executioner",
	})
	require.NoError(t, err)
	assert.Equal(t, "LAPORAN KERUGIAN MINGGUAN", out.Subject)
	assert.Equal(t, 2, calls)
}

func TestGenerateStopsWhenContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":503,"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GenerateAudit(ctx, AuditInput{SituationDetails: "x", Lang: "id"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), context.Canceled.Error()) ||
		strings.Contains(err.Error(), "overloaded"))
}
