package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
)

// SessionStore keeps game sessions in Redis so several service instances can
// serve the same session.
// Keys:
//
//	quiz:session:{id}                   session JSON
//	quiz:session:pin:{pin}              session id, reserved with SETNX
//	quiz:session:code:{shareCode}       session id, reserved with SETNX
//	quiz:open:{quizID}:{classroomID}    id of the waiting/active session
//	quiz:classroom:{classroomID}        set of session ids
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, session domain.GameSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, pinKey(session.Pin), session.ID, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCodeTaken
	}
	ok, err = s.client.SetNX(ctx, shareCodeKey(session.ShareCode), session.ID, s.ttl).Result()
	if err != nil || !ok {
		_ = s.client.Del(ctx, pinKey(session.Pin)).Err()
		if err != nil {
			return err
		}
		return domain.ErrCodeTaken
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), data, s.ttl)
		pipe.SAdd(ctx, classroomKey(session.ClassroomID), session.ID)
		if session.IsOpen() {
			pipe.Set(ctx, openKey(session.QuizID, session.ClassroomID), session.ID, s.ttl)
		}
		return nil
	})
	return err
}

func (s *SessionStore) Get(ctx context.Context, id string) (domain.GameSession, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, err
	}
	var session domain.GameSession
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.GameSession{}, err
	}
	return session, nil
}

func (s *SessionStore) GetByPin(ctx context.Context, pin string) (domain.GameSession, error) {
	return s.getByIndex(ctx, pinKey(pin))
}

func (s *SessionStore) GetByShareCode(ctx context.Context, code string) (domain.GameSession, error) {
	return s.getByIndex(ctx, shareCodeKey(code))
}

func (s *SessionStore) FindOpen(ctx context.Context, quizID, classroomID string) (domain.GameSession, bool, error) {
	session, err := s.getByIndex(ctx, openKey(quizID, classroomID))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.GameSession{}, false, nil
	}
	if err != nil {
		return domain.GameSession{}, false, err
	}
	if !session.IsOpen() {
		return domain.GameSession{}, false, nil
	}
	return session, true, nil
}

// Update writes session under WATCH so a write based on an older version fails
// with domain.ErrVersionConflict. It also refreshes the TTL of the pin, share
// code and open-session keys, and drops the open-session index once the session closes.
func (s *SessionStore) Update(ctx context.Context, session *domain.GameSession) error {
	key := sessionKey(session.ID)
	open := openKey(session.QuizID, session.ClassroomID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var stored domain.GameSession
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		if stored.Version != session.Version {
			return domain.ErrVersionConflict
		}
		openID, err := tx.Get(ctx, open).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		next := *session
		next.Version++
		data, err = json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.Expire(ctx, pinKey(session.Pin), s.ttl)
			pipe.Expire(ctx, shareCodeKey(session.ShareCode), s.ttl)
			if openID == session.ID {
				if next.IsOpen() {
					pipe.Expire(ctx, open, s.ttl)
				} else {
					pipe.Del(ctx, open)
				}
			}
			return nil
		})
		return err
	}, key, open)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrVersionConflict
	}
	if err != nil {
		return err
	}
	session.Version++
	return nil
}

func (s *SessionStore) ListByClassroom(ctx context.Context, classroomID string) ([]string, error) {
	return s.client.SMembers(ctx, classroomKey(classroomID)).Result()
}

func (s *SessionStore) getByIndex(ctx context.Context, key string) (domain.GameSession, error) {
	id, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, err
	}
	return s.Get(ctx, id)
}

func sessionKey(id string) string {
	return "quiz:session:" + id
}

func pinKey(pin string) string {
	return "quiz:session:pin:" + pin
}

func shareCodeKey(code string) string {
	return "quiz:session:code:" + code
}

func openKey(quizID, classroomID string) string {
	return "quiz:open:" + quizID + ":" + classroomID
}

func classroomKey(classroomID string) string {
	return "quiz:classroom:" + classroomID
}
