package profile

import (
	"context"
	"strconv"
	"strings"

	"drinkup/internal/logging"
	"drinkup/internal/storage"

	"go.uber.org/zap"
)

const (
	keyName   = "@user_name"
	keyAge    = "@user_age"
	keyGender = "@user_gender"
	keySport  = "@user_sport"
)

// Store persists the single user profile in a KV.
type Store struct {
	kv     storage.KV
	logger *zap.Logger
}

// NewStore creates a profile Store.
func NewStore(kv storage.KV, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logging.OrNop(logger)}
}

// Load returns the persisted profile. Missing, partial or unparseable data
// all report ok == false; read failures are logged, never returned.
func (s *Store) Load(ctx context.Context) (Profile, bool) {
	raw := make(map[string]string, 4)
	for _, key := range []string{keyName, keyAge, keyGender, keySport} {
		v, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			s.logger.Warn("failed to read profile", zap.String("key", key), zap.Error(err))
			return Profile{}, false
		}
		if !ok || v == "" {
			return Profile{}, false
		}
		raw[key] = v
	}

	age, err := strconv.Atoi(raw[keyAge])
	if err != nil {
		s.logger.Warn("discarding profile with bad age", zap.String("age", raw[keyAge]))
		return Profile{}, false
	}
	gender, err := ParseGender(raw[keyGender])
	if err != nil {
		s.logger.Warn("discarding profile with bad gender", zap.Error(err))
		return Profile{}, false
	}
	active, err := parseActive(raw[keySport])
	if err != nil {
		s.logger.Warn("discarding profile with bad sport flag", zap.String("sport", raw[keySport]))
		return Profile{}, false
	}

	p := Profile{Name: raw[keyName], Age: age, Gender: gender, Active: active}
	if p.Validate() != nil {
		return Profile{}, false
	}
	return p, true
}

// Save validates p and writes all four fields before returning.
func (s *Store) Save(ctx context.Context, p Profile) error {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return err
	}

	err := storage.SetAll(ctx, s.kv, map[string]string{
		keyName:   p.Name,
		keyAge:    strconv.Itoa(p.Age),
		keyGender: string(p.Gender),
		keySport:  strconv.FormatBool(p.Active),
	})
	if err != nil {
		s.logger.Error("failed to save profile", zap.Error(err))
		return err
	}

	s.logger.Info("profile saved",
		zap.Int("age", p.Age),
		zap.String("gender", string(p.Gender)),
		zap.Bool("active", p.Active))
	return nil
}

// Reset removes the profile so the user goes through onboarding again.
func (s *Store) Reset(ctx context.Context) error {
	for _, key := range []string{keyName, keyAge, keyGender, keySport} {
		if err := s.kv.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// parseActive also understands legacy "Sim"/"Não" values.
func parseActive(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sim", "yes", "y":
		return true, nil
	case "não", "nao", "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}
