package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"odo-backend/internal/metrics"
	"odo-backend/internal/models"
)

// SessionStore is the slice of the session repository the service needs.
type SessionStore interface {
	CreateSuperseding(ctx context.Context, s *models.Session, audit *models.LoginAudit) error
	GetActive(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Session, error)
	FindOtherActive(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	TouchLastActive(ctx context.Context, sessionID string) error
	Deactivate(ctx context.Context, sessionID string) error
	AppendAudit(ctx context.Context, audit *models.LoginAudit) error
}

type SessionService struct {
	store SessionStore
}

func NewSessionService(store SessionStore) *SessionService {
	return &SessionService{store: store}
}

// Create opens a new login session. For the extension device class, every
// previously active extension session of the user is deactivated in the same
// atomic unit, so the single-active-session invariant holds even under
// concurrent logins.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, deviceClass models.DeviceClass, ip, userAgent string, deviceInfo json.RawMessage) (*models.Session, error) {
	if !deviceClass.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"device_class": "device_class must be extension or web"}}
	}

	browser, osName := parseUserAgent(userAgent)
	session := &models.Session{
		SessionID:   newSessionID(deviceClass),
		UserID:      userID,
		DeviceClass: deviceClass,
		IPAddress:   ip,
		Browser:     browser,
		OS:          osName,
		DeviceInfo:  deviceInfo,
	}

	audit := &models.LoginAudit{
		UserID:    userID,
		SessionID: session.SessionID,
		IPAddress: ip,
		UserAgent: userAgent,
		Status:    "success",
	}

	if err := s.store.CreateSuperseding(ctx, session, audit); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	metrics.SessionsCreated.WithLabelValues(string(deviceClass)).Inc()
	log.Info().
		Str("session_id", session.SessionID).
		Str("user_id", userID.String()).
		Str("device_class", string(deviceClass)).
		Msg("session created")

	return session, nil
}

// Validate checks whether the presented session id is currently valid for
// the user. On success the session's last-active time is refreshed. On
// rejection the returned error classifies why, comparing the request IP
// against any other active session of the user.
func (s *SessionService) Validate(ctx context.Context, sessionID string, userID uuid.UUID, requestIP string) (*models.Session, error) {
	session, err := s.store.GetActive(ctx, sessionID, userID)
	if err != nil {
		// Fail closed: an unclassifiable rejection reads as an expiry.
		log.Error().Err(err).Str("session_id", sessionID).Msg("session lookup failed")
		metrics.SessionRejections.WithLabelValues("store_error").Inc()
		return nil, &SessionRejectedError{Reason: ReasonExpired}
	}

	if session != nil {
		if err := s.store.TouchLastActive(ctx, sessionID); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to refresh last-active")
		}
		return session, nil
	}

	other, err := s.store.FindOtherActive(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("conflict classification failed")
		metrics.SessionRejections.WithLabelValues("store_error").Inc()
		return nil, &SessionRejectedError{Reason: ReasonExpired}
	}

	if other == nil {
		metrics.SessionRejections.WithLabelValues("expired").Inc()
		return nil, &SessionRejectedError{Reason: ReasonExpired}
	}

	if other.IPAddress == requestIP {
		metrics.SessionRejections.WithLabelValues("same_ip").Inc()
		return nil, &SessionRejectedError{Reason: ReasonSameIP, ConflictingIP: true}
	}

	metrics.SessionRejections.WithLabelValues("superseded").Inc()
	return nil, &SessionRejectedError{Reason: ReasonSuperseded}
}

// End deactivates a session on explicit logout and records the audit entry.
func (s *SessionService) End(ctx context.Context, sessionID string, userID uuid.UUID, ip, userAgent string) error {
	if err := s.store.Deactivate(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	audit := &models.LoginAudit{
		UserID:    userID,
		SessionID: sessionID,
		IPAddress: ip,
		UserAgent: userAgent,
		Status:    "logout",
	}
	if err := s.store.AppendAudit(ctx, audit); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to append logout audit")
	}
	return nil
}

// newSessionID builds an unguessable id of the form
// <128 random bits as hex>-<base36 timestamp>-<class suffix>. The suffix
// lets the device class be read back off the id itself.
func newSessionID(class models.DeviceClass) string {
	b := make([]byte, 16)
	rand.Read(b)
	suffix := "web"
	if class == models.DeviceExtension {
		suffix = "ext"
	}
	return hex.EncodeToString(b) + "-" + strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + suffix
}

// DeviceClassOf inspects a session id's suffix.
func DeviceClassOf(sessionID string) models.DeviceClass {
	if strings.HasSuffix(sessionID, "-ext") {
		return models.DeviceExtension
	}
	return models.DeviceWeb
}

func parseUserAgent(ua string) (browser, osName string) {
	browser, osName = "Unknown", "Unknown"
	switch {
	case strings.Contains(ua, "Edg"):
		browser = "Edge"
	case strings.Contains(ua, "Chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "Firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "Safari"):
		browser = "Safari"
	}
	switch {
	case strings.Contains(ua, "Windows"):
		osName = "Windows"
	case strings.Contains(ua, "Mac"):
		osName = "MacOS"
	case strings.Contains(ua, "Android"):
		osName = "Android"
	case strings.Contains(ua, "iOS"), strings.Contains(ua, "iPhone"):
		osName = "iOS"
	case strings.Contains(ua, "Linux"):
		osName = "Linux"
	}
	return browser, osName
}
