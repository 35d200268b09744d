package hfhub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
	"github.com/matzehuels/shelfmark/pkg/integrations"
	"github.com/matzehuels/shelfmark/pkg/snapshot"
)

// Defaults for the public hub.
const (
	DefaultEndpoint = "https://huggingface.co"
	DefaultRepo     = "mhmtaufiq/gramedia-datasets"
	DefaultRevision = "main"
)

// sampleSize is how much of a file the preupload call inspects.
const sampleSize = 512

// Options configures a [Hub]. Zero values use the package defaults.
type Options struct {
	Endpoint string
	Repo     string // "namespace/name"
	Revision string
	Private  bool        // visibility when the repository is created
	Tokens   TokenSource // consulted once, on first login
	HTTP     *http.Client
	Attempts int
	Backoff  time.Duration
}

// Hub is a dataset repository on a Hugging Face hub.
//
// All methods are safe for concurrent use by multiple goroutines.
type Hub struct {
	*integrations.Client
	endpoint string
	repo     string
	revision string
	private  bool
	tokens   TokenSource

	loginMu sync.Mutex // serializes Login; held across the token prompt

	mu    sync.Mutex // guards token and user
	token string
	user  *User
}

// New creates a Hub client. The repository id is validated but not
// contacted.
func New(opts Options) (*Hub, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Repo == "" {
		opts.Repo = DefaultRepo
	}
	if opts.Revision == "" {
		opts.Revision = DefaultRevision
	}
	if err := apperrors.ValidateRepoID(opts.Repo); err != nil {
		return nil, err
	}
	if opts.Tokens == nil {
		opts.Tokens = StaticToken("")
	}
	return &Hub{
		Client:   integrations.NewClient(opts.HTTP, nil).WithRetry(opts.Attempts, opts.Backoff),
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		repo:     opts.Repo,
		revision: opts.Revision,
		private:  opts.Private,
		tokens:   opts.Tokens,
	}, nil
}

// Repo returns the repository id.
func (h *Hub) Repo() string { return h.repo }

func (h *Hub) fileURL(filename string) string {
	return fmt.Sprintf("%s/datasets/%s/resolve/%s/%s",
		h.endpoint, h.repo, integrations.PathEscape(h.revision), integrations.PathEscape(filename))
}

// authHeaders returns the bearer header if logged in, or nil.
func (h *Hub) authHeaders() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return bearer(h.token)
}

func bearer(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// Exists reports whether filename is present in the repository.
func (h *Hub) Exists(ctx context.Context, filename string) (bool, error) {
	return h.Head(ctx, h.fileURL(filename), h.authHeaders())
}

// Download fetches filename from the repository.
func (h *Hub) Download(ctx context.Context, filename string) ([]byte, error) {
	data, err := h.GetBytes(ctx, h.fileURL(filename), h.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("download %s from %s: %w", filename, h.repo, err)
	}
	return data, nil
}

// Login obtains a token from the TokenSource and verifies it. It runs at
// most once successfully; later calls return the cached identity. A failed
// login is not remembered, so a later call may try again.
func (h *Hub) Login(ctx context.Context) (*User, error) {
	h.loginMu.Lock()
	defer h.loginMu.Unlock()
	if user := h.loggedIn(); user != nil {
		return user, nil
	}

	token, err := h.tokens(ctx)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, apperrors.Wrap(apperrors.ErrCodeUnauthorized, err, "hub login")
		}
		return nil, fmt.Errorf("hub login: %w", err)
	}
	user, err := h.whoami(ctx, token)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.token, h.user = token, user
	h.mu.Unlock()
	return user, nil
}

func (h *Hub) loggedIn() *User {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.user
}

// Whoami verifies token (or, if empty, the logged-in token) and returns its
// identity without changing the login state.
func (h *Hub) Whoami(ctx context.Context, token string) (*User, error) {
	if token == "" {
		h.mu.Lock()
		token = h.token
		h.mu.Unlock()
	}
	if token == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "not logged in")
	}
	return h.whoami(ctx, token)
}

func (h *Hub) whoami(ctx context.Context, token string) (*User, error) {
	var user User
	err := h.GetWithHeaders(ctx, h.endpoint+"/api/whoami-v2", bearer(token), &user)
	if err != nil {
		if errors.Is(err, integrations.ErrUnauthorized) {
			return nil, apperrors.Wrap(apperrors.ErrCodeUnauthorized, err, "hub rejected token")
		}
		return nil, fmt.Errorf("whoami: %w", err)
	}
	if user.Name == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidResponse, "whoami: response has no name")
	}
	return &user, nil
}

// Upload logs in if needed, makes sure the repository exists, and commits
// data as filename on the configured revision.
func (h *Hub) Upload(ctx context.Context, filename string, data []byte) error {
	if err := apperrors.ValidateFilename(filename); err != nil {
		return err
	}
	if _, err := h.Login(ctx); err != nil {
		return err
	}
	auth := h.authHeaders()

	if err := h.createRepo(ctx, auth); err != nil {
		return err
	}
	mode, err := h.preupload(ctx, auth, filename, data)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(data)
	oid := hex.EncodeToString(sum[:])

	var file commitLine
	if mode == "lfs" {
		if err := h.uploadLFS(ctx, auth, oid, data); err != nil {
			return err
		}
		file = commitLine{Key: "lfsFile", Value: commitLFSFile{Path: filename, Algo: "sha256", OID: oid, Size: len(data)}}
	} else {
		file = commitLine{Key: "file", Value: commitFile{Path: filename, Content: base64.StdEncoding.EncodeToString(data), Encoding: "base64"}}
	}
	return h.commit(ctx, auth, filename, file)
}

func (h *Hub) createRepo(ctx context.Context, auth map[string]string) error {
	namespace, name, _ := strings.Cut(h.repo, "/")
	req := createRepoRequest{Type: "dataset", Name: name, Private: h.private}

	h.mu.Lock()
	if h.user == nil || h.user.Name != namespace {
		req.Organization = namespace
	}
	h.mu.Unlock()

	body, _ := json.Marshal(req)
	err := h.Do(ctx, integrations.Request{
		Method:  http.MethodPost,
		URL:     h.endpoint + "/api/repos/create",
		Headers: withJSON(auth, "application/json"),
		Body:    body,
	}, nil)
	if err != nil && !errors.Is(err, integrations.ErrConflict) {
		return apperrors.Wrap(apperrors.ErrCodePublishFailed, err, "create repository %s", h.repo)
	}
	return nil
}

func (h *Hub) preupload(ctx context.Context, auth map[string]string, filename string, data []byte) (string, error) {
	sample := data
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	body, _ := json.Marshal(preuploadRequest{Files: []preuploadFile{{
		Path:   filename,
		Sample: base64.StdEncoding.EncodeToString(sample),
		Size:   len(data),
	}}})

	var resp preuploadResponse
	err := h.Do(ctx, integrations.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/api/datasets/%s/preupload/%s", h.endpoint, h.repo, integrations.PathEscape(h.revision)),
		Headers: withJSON(auth, "application/json"),
		Body:    body,
	}, &resp)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodePublishFailed, err, "preupload %s", filename)
	}
	for _, f := range resp.Files {
		if f.Path == filename {
			return f.UploadMode, nil
		}
	}
	return "regular", nil
}

const lfsMediaType = "application/vnd.git-lfs+json"

func (h *Hub) uploadLFS(ctx context.Context, auth map[string]string, oid string, data []byte) error {
	body, _ := json.Marshal(lfsBatchRequest{
		Operation: "upload",
		Transfers: []string{"basic"},
		Objects:   []lfsObject{{OID: oid, Size: len(data)}},
		HashAlgo:  "sha256",
	})
	headers := withJSON(auth, lfsMediaType)
	headers["Accept"] = lfsMediaType

	var batch lfsBatchResponse
	err := h.Do(ctx, integrations.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/datasets/%s.git/info/lfs/objects/batch", h.endpoint, h.repo),
		Headers: headers,
		Body:    body,
	}, &batch)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodePublishFailed, err, "lfs batch")
	}
	if len(batch.Objects) == 0 {
		return apperrors.New(apperrors.ErrCodeInvalidResponse, "lfs batch: no objects in response")
	}

	obj := batch.Objects[0]
	if obj.Error != nil {
		return apperrors.New(apperrors.ErrCodePublishFailed, "lfs batch: %d %s", obj.Error.Code, obj.Error.Message)
	}
	upload, ok := obj.Actions["upload"]
	if !ok {
		// The hub already has this object.
		return nil
	}
	err = h.Do(ctx, integrations.Request{
		Method:  http.MethodPut,
		URL:     upload.Href,
		Headers: upload.Header,
		Body:    data,
	}, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodePublishFailed, err, "lfs upload")
	}

	if verify, ok := obj.Actions["verify"]; ok {
		vbody, _ := json.Marshal(lfsObject{OID: oid, Size: len(data)})
		vheaders := withJSON(verify.Header, lfsMediaType)
		err = h.Do(ctx, integrations.Request{
			Method:  http.MethodPost,
			URL:     verify.Href,
			Headers: mergeHeaders(auth, vheaders),
			Body:    vbody,
		}, nil)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodePublishFailed, err, "lfs verify")
		}
	}
	return nil
}

func (h *Hub) commit(ctx context.Context, auth map[string]string, filename string, file commitLine) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	_ = enc.Encode(commitLine{Key: "header", Value: commitHeader{
		Summary: "Upload " + filename + " with shelfmark",
	}})
	_ = enc.Encode(file)

	err := h.Do(ctx, integrations.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/api/datasets/%s/commit/%s", h.endpoint, h.repo, integrations.PathEscape(h.revision)),
		Headers: withJSON(auth, "application/x-ndjson"),
		Body:    buf.Bytes(),
	}, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodePublishFailed, err, "commit %s", filename)
	}
	return nil
}

func withJSON(h map[string]string, contentType string) map[string]string {
	out := mergeHeaders(h, nil)
	out["Content-Type"] = contentType
	return out
}

func mergeHeaders(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b)+1)
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

var _ snapshot.Remote = (*Hub)(nil)
