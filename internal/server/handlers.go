package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/rbright/voxlate/internal/catalog"
	"github.com/rbright/voxlate/internal/langid"
	"github.com/rbright/voxlate/internal/translate"
	"github.com/rbright/voxlate/internal/version"
)

const maxBodyBytes = 64 << 10

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	Detection  *langid.Detection  `json:"detection"`
	Candidates []langid.Detection `json:"candidates"`
}

type translateRequest struct {
	Text string `json:"text"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type translateResponse struct {
	Translation translate.Result  `json:"translation"`
	Detection   *langid.Detection `json:"detection,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalog.All())
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if s.opts.Detector == nil {
		writeError(w, http.StatusServiceUnavailable, "", "language detection is not configured")
		return
	}

	resp := detectResponse{Candidates: s.opts.Detector.IdentifyAll(req.Text)}
	if len(resp.Candidates) > 0 {
		best := resp.Candidates[0]
		resp.Detection = &best
	} else {
		resp.Candidates = []langid.Detection{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "", "text is required")
		return
	}
	if s.opts.Translator == nil {
		writeError(w, http.StatusServiceUnavailable, "", "translation is not configured")
		return
	}

	target := catalog.Normalize(req.To)
	if target == "" {
		target = catalog.Normalize(s.opts.DefaultTarget)
	}
	if !catalog.Contains(target) {
		writeError(w, http.StatusBadRequest, "", fmt.Sprintf("unsupported target language %q", req.To))
		return
	}

	var resp translateResponse
	source := catalog.Normalize(req.From)
	if source == "" {
		if s.opts.Detector == nil {
			writeError(w, http.StatusBadRequest, "", "from is required when detection is not configured")
			return
		}
		detection, ok := s.opts.Detector.Identify(req.Text)
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "no_detection", "could not detect the input language")
			return
		}
		resp.Detection = &detection
		source = detection.Code
	}

	result, err := s.opts.Translator.Translate(r.Context(), req.Text, source, target)
	if err != nil {
		status, kind := translateStatus(err)
		s.logger.Warn("api translate failed",
			"request_id", requestIDFrom(r.Context()),
			"langpair", source+"|"+target,
			"error", err.Error(),
		)
		writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind, RequestID: requestIDFrom(r.Context())})
		return
	}
	resp.Translation = result
	writeJSON(w, http.StatusOK, resp)
}

// translateStatus maps a translation failure to an HTTP status and kind.
func translateStatus(err error) (int, string) {
	kind := translate.KindOf(err)
	switch kind {
	case translate.KindUnsupportedPair:
		return http.StatusUnprocessableEntity, string(kind)
	case translate.KindRateLimited:
		return http.StatusTooManyRequests, string(kind)
	case translate.KindTimeout:
		return http.StatusGatewayTimeout, string(kind)
	case "":
		return http.StatusInternalServerError, ""
	default:
		return http.StatusBadGateway, string(kind)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		writeError(w, http.StatusBadRequest, "", fmt.Sprintf("decode request: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}

func originHost(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}
	return u.Host, nil
}

func isLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
