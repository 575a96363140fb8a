package secflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSubmitterUpload(t *testing.T) {
	var gotAuth, gotFingerprint, gotPartition string
	var gotPayload []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/files/upload", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFingerprint = r.FormValue("fingerprint")
		gotPartition = r.FormValue("partition_id")
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		buf := make([]byte, 64)
		n, _ := f.Read(buf)
		gotPayload = buf[:n]
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sub := &HTTPSubmitter{BaseURL: srv.URL, Token: "tok"}
	sub.StageUpload(PendingUpload{Name: "a.txt", PartitionID: "p-1", Payload: []byte("hello")})

	err := sub.Submit(context.Background(), Request{FileID: "", Purpose: PurposeEncrypt, Artifact: []byte("artifact")})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "artifact", gotFingerprint)
	assert.Equal(t, "p-1", gotPartition)
	assert.Equal(t, []byte("hello"), gotPayload)
}

func TestHTTPSubmitterUploadWithoutStaging(t *testing.T) {
	sub := &HTTPSubmitter{BaseURL: "http://unused"}
	err := sub.Submit(context.Background(), Request{Purpose: PurposeEncrypt})
	assert.Error(t, err)
}

func TestHTTPSubmitterDownloadDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/files/f-1/download", r.URL.Path)
		require.Equal(t, "artifact", r.URL.Query().Get("fingerprint"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"file_name": "a.txt",
			"file_type": "TXT",
			"file_size": 9,
			"file_data": base64.StdEncoding.EncodeToString([]byte("decrypted")),
			"mime_type": "text/plain",
		})
	}))
	defer srv.Close()

	var gotCT string
	var gotBody []byte
	sub := &HTTPSubmitter{
		BaseURL: srv.URL,
		Token:   "tok",
		HandlePayload: func(ct string, body []byte) error {
			gotCT, gotBody = ct, body
			return nil
		},
	}
	err := sub.Submit(context.Background(), Request{FileID: "f-1", Purpose: PurposeDecrypt, Artifact: []byte("artifact")})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", gotCT)
	assert.Equal(t, []byte("decrypted"), gotBody)
}

func TestHTTPSubmitterPreviewStreamsBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/files/f-1/preview", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("pngbytes"))
	}))
	defer srv.Close()

	var gotCT string
	var gotBody []byte
	sub := &HTTPSubmitter{
		BaseURL: srv.URL,
		Token:   "tok",
		HandlePayload: func(ct string, body []byte) error {
			gotCT, gotBody = ct, body
			return nil
		},
	}
	err := sub.Submit(context.Background(), Request{FileID: "f-1", Purpose: PurposePreview, Artifact: []byte("artifact")})
	require.NoError(t, err)
	assert.Equal(t, "image/png", gotCT)
	assert.Equal(t, []byte("pngbytes"), gotBody)
}

func TestHTTPSubmitterSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"file.credential_rejected","message":"fingerprint not recognized"}}`))
	}))
	defer srv.Close()

	sub := &HTTPSubmitter{BaseURL: srv.URL}
	err := sub.Submit(context.Background(), Request{FileID: "f-1", Purpose: PurposePreview, Artifact: []byte("bad")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file.credential_rejected")
}
