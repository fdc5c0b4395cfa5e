package server

import (
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/zsiec/timecode/internal/errors"
	"github.com/zsiec/timecode/internal/health"
	"github.com/zsiec/timecode/internal/logger"
	"github.com/zsiec/timecode/internal/metrics"
	"github.com/zsiec/timecode/internal/rtpext"
	"github.com/zsiec/timecode/pkg/framerate"
	"github.com/zsiec/timecode/pkg/timecode"
	"github.com/zsiec/timecode/pkg/version"
)

// FrameRateInfo describes one supported frame rate.
type FrameRateInfo struct {
	Name          string  `json:"name"`
	Numerator     int64   `json:"numerator"`
	Denominator   int64   `json:"denominator"`
	Drop          bool    `json:"drop"`
	FPS           float32 `json:"fps"`
	Computational string  `json:"computational"`
}

// SecondsResponse is the exact length of a timecode.
type SecondsResponse struct {
	Numerator   int64   `json:"numerator"`
	Denominator int64   `json:"denominator"`
	Seconds     float64 `json:"seconds"`
	Timecode    string  `json:"timecode"`
}

// DecodeRequest carries a hex encoded payload for clients that cannot
// send raw bytes.
type DecodeRequest struct {
	Hex string `json:"hex"`
}

func (s *Server) registerAPIRoutes(api *mux.Router) {
	api.HandleFunc("/framerates", s.handleFrameRates).Methods("GET")
	api.HandleFunc("/timecode/frames", s.handleFromFrames).Methods("GET")
	api.HandleFunc("/timecode/duration", s.handleFromDuration).Methods("GET")
	api.HandleFunc("/timecode/decode/{format}", s.handleDecode).Methods("POST")
	api.HandleFunc("/timecode/rtp", s.handleRTP).Methods("POST")
	api.HandleFunc("/timecode/seconds", s.handleSeconds).Methods("POST")
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

// handleReady answers with a SERVICE_DOWN error listing the failing checks
// while the cached health status is down.
func (s *Server) handleReady(ready http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.healthMgr.GetOverallStatus() != health.StatusDown {
			ready(w, r)
			return
		}

		failing := make(map[string]interface{})
		for name, check := range s.healthMgr.GetResults() {
			if check.Status == health.StatusDown {
				failing[name] = check.Message
			}
		}
		s.errorHandler.HandleError(w, r, errors.NewServiceDownError(version.Name).
			WithDetails(map[string]interface{}{"checks": failing}))
	}
}

func (s *Server) handleFrameRates(w http.ResponseWriter, r *http.Request) {
	rates := framerate.All()
	out := make([]FrameRateInfo, 0, len(rates))
	for _, rate := range rates {
		q := rate.Rational()
		out = append(out, FrameRateInfo{
			Name:          rate.String(),
			Numerator:     q.Num,
			Denominator:   q.Den,
			Drop:          rate.Drop(),
			FPS:           rate.Float32(),
			Computational: rate.Computational().String(),
		})
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleFromFrames(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("count")
	if raw == "" {
		s.errorHandler.HandleError(w, r, errors.NewValidationError("count is required"))
		return
	}
	count, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		s.errorHandler.HandleError(w, r, errors.WrapValidationError(err, "count must be an unsigned 32 bit integer"))
		return
	}

	rate, err := s.frameRate(r)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	tc := timecode.FromFrames(uint32(count), rate)
	metrics.RecordConversion("frames", rate.String())
	s.writeJSON(w, r, http.StatusOK, tc)
}

// maxDurationMS is the largest millisecond count a time.Duration holds.
const maxDurationMS = math.MaxInt64 / int64(time.Millisecond)

func (s *Server) handleFromDuration(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var d time.Duration
	switch {
	case q.Get("ms") != "":
		ms, err := strconv.ParseInt(q.Get("ms"), 10, 64)
		if err != nil {
			s.errorHandler.HandleError(w, r, errors.WrapValidationError(err, "ms must be an integer"))
			return
		}
		if ms < 0 || ms > maxDurationMS {
			s.errorHandler.HandleError(w, r, errors.NewValidationError(
				fmt.Sprintf("ms must be between 0 and %d", maxDurationMS)))
			return
		}
		d = time.Duration(ms) * time.Millisecond
	case q.Get("duration") != "":
		parsed, err := time.ParseDuration(q.Get("duration"))
		if err != nil {
			s.errorHandler.HandleError(w, r, errors.WrapValidationError(err, "duration must be a Go duration such as 1h2m3.5s"))
			return
		}
		if parsed < 0 {
			s.errorHandler.HandleError(w, r, errors.NewValidationError("duration must not be negative"))
			return
		}
		d = parsed
	default:
		s.errorHandler.HandleError(w, r, errors.NewValidationError("ms or duration is required"))
		return
	}

	tc := timecode.FromDuration(d)
	metrics.RecordConversion("duration", "ms")
	s.writeJSON(w, r, http.StatusOK, tc)
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	format, err := timecode.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		s.errorHandler.HandleError(w, r, errors.WrapValidationError(err, err.Error()))
		return
	}

	rate, err := s.frameRate(r)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	strict, err := s.strict(r)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	data, err := s.readPayload(r)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	var tc timecode.Timecode
	if strict {
		tc, err = timecode.ParseStrict(format, data, rate)
		if err != nil {
			logger.WithFormat(s.logger, string(format), rate.String()).
				WithError(err).WithField("bytes", len(data)).Debug("Strict decode rejected payload")
			metrics.RecordDecode(string(format), metrics.ResultInvalid, len(data))
			s.errorHandler.HandleError(w, r, errors.NewDecodeError(string(format), err).WithCode(decodeFailureCode(err)))
			return
		}
	} else {
		var ok bool
		tc, ok = timecode.Parse(format, data, rate)
		if !ok {
			logger.WithFormat(s.logger, string(format), rate.String()).
				WithField("bytes", len(data)).Debug("Payload carried no timecode")
			metrics.RecordDecode(string(format), metrics.ResultAbsent, len(data))
			s.errorHandler.HandleError(w, r, errors.NewDecodeError(string(format), nil).WithCode(codeNoTimecode))
			return
		}
	}

	metrics.RecordDecode(string(format), metrics.ResultOK, len(data))
	s.writeJSON(w, r, http.StatusOK, tc)
}

func (s *Server) handleRTP(w http.ResponseWriter, r *http.Request) {
	rate, err := s.frameRate(r)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	id := s.timecode.RTPExtensionID
	if raw := r.URL.Query().Get("ext"); raw != "" {
		id, err = strconv.Atoi(raw)
		if err != nil || id < 1 || id > 255 {
			s.errorHandler.HandleError(w, r, errors.NewValidationError("ext must be an extension id between 1 and 255"))
			return
		}
	}

	extractor, err := rtpext.NewExtractor(uint8(id), rate)
	if err != nil {
		s.errorHandler.HandleError(w, r, errors.WrapValidationError(err, err.Error()))
		return
	}

	body, err := s.readBody(r)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	tc, err := extractor.FromBytes(body)
	switch {
	case stderrors.Is(err, rtpext.ErrMalformedPacket):
		s.errorHandler.HandleError(w, r, errors.WrapValidationError(err, "body is not an RTP packet"))
		return
	case err != nil:
		logger.WithFormat(s.logger, "rtp", rate.String()).
			WithError(err).WithField("extension_id", extractor.ExtensionID()).Debug("RTP packet carried no timecode")
		metrics.RecordDecode("rtp", metrics.ResultAbsent, len(body))
		s.errorHandler.HandleError(w, r, errors.NewDecodeError("rtp", err).WithCode(decodeFailureCode(err)))
		return
	}

	metrics.RecordDecode("rtp", metrics.ResultOK, len(body))
	s.writeJSON(w, r, http.StatusOK, tc)
}

func (s *Server) handleSeconds(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(r)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	var tc timecode.Timecode
	if err := json.Unmarshal(body, &tc); err != nil {
		s.errorHandler.HandleError(w, r, errors.WrapValidationError(err, "body must be a timecode object"))
		return
	}

	kind := "ms"
	if f, ok := tc.Fraction.Frames(); ok {
		if f.NumberOfFrames() > 0 && !f.FrameRate().Valid() {
			s.errorHandler.HandleError(w, r, errors.NewValidationError("frame_rate is required when frames is set"))
			return
		}
		kind = f.FrameRate().String()
	}

	q := tc.Rational()
	metrics.RecordConversion("seconds", kind)

	s.writeJSON(w, r, http.StatusOK, SecondsResponse{
		Numerator:   q.Num,
		Denominator: q.Den,
		Seconds:     q.Float64(),
		Timecode:    tc.String(),
	})
}

const codeNoTimecode = "NO_TIMECODE"

// decodeFailureCode maps decoder sentinel errors to error response codes.
func decodeFailureCode(err error) string {
	switch {
	case stderrors.Is(err, timecode.ErrShortInput):
		return "SHORT_INPUT"
	case stderrors.Is(err, timecode.ErrBadLength):
		return "BAD_LENGTH"
	case stderrors.Is(err, timecode.ErrBadMarker):
		return "BAD_MARKER"
	case stderrors.Is(err, timecode.ErrOutOfRange):
		return "OUT_OF_RANGE"
	case stderrors.Is(err, rtpext.ErrNoExtension):
		return "NO_EXTENSION"
	default:
		return codeNoTimecode
	}
}

// frameRate reads the "rate" query parameter, falling back to the
// configured default.
func (s *Server) frameRate(r *http.Request) (framerate.FrameRate, error) {
	raw := r.URL.Query().Get("rate")
	if raw == "" {
		return s.defaultRate, nil
	}
	rate, err := framerate.Parse(raw)
	if err != nil {
		return framerate.Unknown, errors.WrapValidationError(err, fmt.Sprintf("unsupported frame rate %q", raw))
	}
	return rate, nil
}

func (s *Server) strict(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("strict")
	if raw == "" {
		return s.timecode.Strict, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.WrapValidationError(err, "strict must be a boolean")
	}
	return v, nil
}

// readPayload returns the binary payload of a decode request: the raw body,
// or the "hex" field when the body is JSON.
func (s *Server) readPayload(r *http.Request) ([]byte, error) {
	body, err := s.readBody(r)
	if err != nil {
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return body, nil
	}

	var req DecodeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.WrapValidationError(err, "body must be {\"hex\": \"...\"}")
	}
	data, err := hex.DecodeString(strings.ReplaceAll(req.Hex, " ", ""))
	if err != nil {
		return nil, errors.WrapValidationError(err, "hex field is not valid hexadecimal")
	}
	return data, nil
}

func (s *Server) readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.NewPayloadTooLargeError(tooLarge.Limit)
		}
		return nil, errors.WrapValidationError(err, "failed to read request body")
	}
	return body, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("Failed to encode response")
	}
}
