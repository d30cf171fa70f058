package compliance

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// ConsentVersion identifies the term text below. Bump it whenever the text changes.
	ConsentVersion = "v1.0"
	// ConsentTypeHealthData is the only consent this service collects.
	ConsentTypeHealthData = "health_data_collection"
	unknownUserAgent      = "unknown"
	unknownIP             = "0.0.0.0"
)

// ConsentText is the term shown to the patient and stored verbatim with every record.
const ConsentText = `TERMO DE CONSENTIMENTO PARA COLETA E TRATAMENTO DE DADOS DE SAÚDE

1. FINALIDADE
Seus dados de saúde serão coletados exclusivamente para realizar triagem virtual por meio de inteligência artificial e encaminhá-lo(a) a um médico para avaliação.

2. DADOS COLETADOS
- Sintomas e queixas relatadas durante a triagem
- Histórico médico informado (alergias, medicamentos, condições pré-existentes)
- Classificação de urgência gerada pelo sistema

3. BASE LEGAL
O tratamento é realizado com base no seu consentimento explícito, conforme Art. 11, I da Lei Geral de Proteção de Dados (Lei 13.709/2018, LGPD).

4. COMPARTILHAMENTO
Seus dados serão compartilhados apenas com o médico responsável pela análise da sua triagem, dentro desta plataforma.

5. RETENÇÃO
Os registros médicos serão mantidos pelo prazo mínimo de 20 anos, conforme exigência do Conselho Federal de Medicina (CFM).

6. SEUS DIREITOS
Você pode, a qualquer momento:
- Solicitar acesso aos seus dados
- Solicitar correção de dados incompletos ou inexatos
- Revogar este consentimento (a revogação não afeta o tratamento já realizado)

Para exercer seus direitos, entre em contato através das configurações da sua conta.`

// ErrNoConsent is returned when the user has no active consent record.
var ErrNoConsent = errors.New("compliance: no active consent")

// ConsentRecord is one acceptance of the consent term.
type ConsentRecord struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ConsentType   string     `json:"consent_type"`
	Version       string     `json:"version"`
	IPAddressHash string     `json:"-"`
	UserAgent     string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	WithdrawnAt   *time.Time `json:"withdrawn_at,omitempty"`
}

// ConsentStore persists consent records in consent_records.
type ConsentStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewConsentStore(db *sql.DB) *ConsentStore {
	return &ConsentStore{db: db, now: time.Now}
}

// HashIP returns the hex sha256 of ip. The raw address is never stored.
func HashIP(ip string) string {
	if ip == "" {
		ip = unknownIP
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

// Active returns the user's most recent unwithdrawn consent.
func (s *ConsentStore) Active(ctx context.Context, userID string) (*ConsentRecord, error) {
	query := `
		SELECT id::text, user_id::text, consent_type, version, ip_address_hash, user_agent, created_at
		FROM consent_records
		WHERE user_id = $1 AND withdrawn_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	var rec ConsentRecord
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.ID, &rec.UserID, &rec.ConsentType, &rec.Version,
		&rec.IPAddressHash, &rec.UserAgent, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoConsent
	}
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to load consent: %w", err)
	}
	return &rec, nil
}

// HasActiveConsent reports whether the user currently consents.
func (s *ConsentStore) HasActiveConsent(ctx context.Context, userID string) (bool, error) {
	_, err := s.Active(ctx, userID)
	if errors.Is(err, ErrNoConsent) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record stores an acceptance of the current term. Only the hash of ip is kept.
func (s *ConsentStore) Record(ctx context.Context, userID, ip, userAgent string) (*ConsentRecord, error) {
	if userAgent == "" {
		userAgent = unknownUserAgent
	}
	rec := &ConsentRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		ConsentType:   ConsentTypeHealthData,
		Version:       ConsentVersion,
		IPAddressHash: HashIP(ip),
		UserAgent:     userAgent,
		CreatedAt:     s.now().UTC(),
	}
	query := `
		INSERT INTO consent_records (
			id, user_id, consent_type, version, consent_text, ip_address_hash, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.ConsentType, rec.Version, ConsentText,
		rec.IPAddressHash, rec.UserAgent, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to record consent: %w", err)
	}
	return rec, nil
}

// Withdraw marks every active consent of the user as withdrawn. Records are
// kept for the audit trail.
func (s *ConsentStore) Withdraw(ctx context.Context, userID string) error {
	query := `UPDATE consent_records SET withdrawn_at = $2 WHERE user_id = $1 AND withdrawn_at IS NULL`
	res, err := s.db.ExecContext(ctx, query, userID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("compliance: failed to withdraw consent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("compliance: failed to withdraw consent: %w", err)
	}
	if n == 0 {
		return ErrNoConsent
	}
	return nil
}
