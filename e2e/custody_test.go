//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/animus-labs/custody/internal/platform/auth"
	"github.com/animus-labs/custody/internal/platform/digest"
	repopg "github.com/animus-labs/custody/internal/repo/postgres"
)

type client struct {
	t       *testing.T
	baseURL string
	secret  string
}

func (c client) do(method, path string, body any, roles string) (int, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}

	requestID := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := auth.ComputeInternalAuthSignature(c.secret, auth.SignedHeaders{
		Timestamp: ts,
		Method:    method,
		Path:      req.URL.Path,
		RequestID: requestID,
		Subject:   "officer-e2e",
		Roles:     roles,
	})
	if err != nil {
		c.t.Fatalf("sign: %v", err)
	}
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set(auth.HeaderSubject, "officer-e2e")
	req.Header.Set(auth.HeaderRoles, roles)
	req.Header.Set(auth.HeaderInternalAuthTimestamp, ts)
	req.Header.Set(auth.HeaderInternalAuthSignature, sig)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

type verifyBody struct {
	EventCount int `json:"eventCount"`
	Report     struct {
		Valid  bool     `json:"valid"`
		Issues []string `json:"issues"`
	} `json:"report"`
}

func TestCustody_RecordAndVerify(t *testing.T) {
	infra := ensureInfra(t)
	infra.ensureBucket(t)

	db, err := sql.Open("pgx", infra.databaseURL)
	if err != nil {
		t.Fatalf("sql open: %v", err)
	}
	defer func() { _ = db.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repopg.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("EnsureSchema() err=%v", err)
	}

	content := []byte("disk image of seized laptop")
	contentHash, err := digest.Sum(content, digest.SHA256)
	if err != nil {
		t.Fatalf("Sum() err=%v", err)
	}
	evidenceID := fmt.Sprintf("ev-%d", time.Now().UnixNano())
	objectKey := "case-e2e/" + evidenceID + ".img"
	infra.putObject(t, objectKey, content)
	_, err = db.ExecContext(ctx,
		`INSERT INTO evidence (evidence_id, case_id, content_sha256, object_key, size_bytes) VALUES ($1,$2,$3,$4,$5)`,
		evidenceID, "case-e2e", contentHash, objectKey, len(content),
	)
	if err != nil {
		t.Fatalf("seed evidence: %v", err)
	}

	addr := freeAddr(t)
	startService(t, "./custody",
		"CUSTODY_HTTP_ADDR="+addr,
		"CUSTODY_SIGNING_SECRET="+infra.signingSecret,
		"CUSTODY_INTERNAL_AUTH_SECRET="+infra.internalSecret,
		"DATABASE_URL="+infra.databaseURL,
		"CUSTODY_MINIO_ENDPOINT="+infra.minioEndpoint,
		"CUSTODY_MINIO_ACCESS_KEY="+infra.minioAccessKey,
		"CUSTODY_MINIO_SECRET_KEY="+infra.minioSecretKey,
		"CUSTODY_MINIO_BUCKET_EVIDENCE="+e2eBucket,
	)
	waitHTTP200(t, fmt.Sprintf("http://%s/readyz", addr), 10*time.Second)

	c := client{t: t, baseURL: "http://" + addr, secret: infra.internalSecret}
	eventsPath := "/evidence/" + evidenceID + "/custody-events"

	if status, _ := c.do(http.MethodPost, eventsPath, map[string]any{"eventType": "COLLECTION"}, "viewer"); status != http.StatusForbidden {
		t.Fatalf("viewer append status=%d, want 403", status)
	}
	for _, body := range []map[string]any{
		{"eventType": "COLLECTION", "to": map[string]any{"userId": "officer-e2e"}},
		{"eventType": "TRANSFER", "from": map[string]any{"userId": "officer-e2e"}, "to": map[string]any{"userId": "lab-1"}, "contentHash": contentHash},
	} {
		if status, out := c.do(http.MethodPost, eventsPath, body, "custodian"); status != http.StatusCreated {
			t.Fatalf("append status=%d body=%s", status, out)
		}
	}

	var verified verifyBody
	status, out := c.do(http.MethodGet, "/evidence/"+evidenceID+"/custody/verify?deep=true", nil, "viewer")
	if status != http.StatusOK {
		t.Fatalf("verify status=%d body=%s", status, out)
	}
	if err := json.Unmarshal(out, &verified); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !verified.Report.Valid || verified.EventCount != 2 {
		t.Fatalf("verify=%s", out)
	}

	infra.putObject(t, objectKey, []byte("altered image"))
	status, out = c.do(http.MethodGet, "/evidence/"+evidenceID+"/custody/verify?deep=true", nil, "viewer")
	if status != http.StatusOK {
		t.Fatalf("verify status=%d body=%s", status, out)
	}
	verified = verifyBody{}
	if err := json.Unmarshal(out, &verified); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if verified.Report.Valid || len(verified.Report.Issues) != 1 || verified.Report.Issues[0] != "stored object hash mismatch" {
		t.Fatalf("deep verify after overwrite=%s", out)
	}
}
