package session

import (
	"go.uber.org/zap"

	"github.com/nsong/lingotalk/internal/model/chat"
	"github.com/nsong/lingotalk/internal/service/translate"
	"github.com/nsong/lingotalk/internal/transport"
)

// decode turns one wire payload into timeline records. A regular
// message yields two: the original-language record and the translated
// variant, sharing id, sender and timestamp. System notices yield one.
//
// The server id is the dedup key: a payload whose id was already
// processed (a backfill overlapping the live stream, or a redelivery)
// is dropped here, before it can reach the timeline.
func (s *Session) decode(payload transport.Payload) []chat.Message {
	if payload.ID != 0 {
		s.mu.Lock()
		if _, dup := s.seen[payload.ID]; dup {
			s.mu.Unlock()
			s.log.Debug("dropping redelivered message", zap.Int64("id", payload.ID))
			return nil
		}
		s.seen[payload.ID] = struct{}{}
		s.mu.Unlock()
	}

	if payload.System {
		return []chat.Message{chat.NewSystem(payload.ID, payload.Text, payload.Timestamp)}
	}

	sender := chat.User{
		ID:        payload.Sender.ID,
		Nickname:  payload.Sender.Nickname,
		AvatarURL: payload.Sender.AvatarURL,
		Language:  chat.ParseLanguage(payload.Sender.Language),
	}

	original := chat.NewIncoming(
		payload.ID, payload.Text, sender,
		payload.Language, payload.Timestamp,
		false, s.viewer.ID,
	)

	translatedText := translate.Materialize(
		s.lifetime, s.translator,
		payload.Text, payload.Language, s.viewer.Language.Code(),
	)
	translated := chat.NewIncoming(
		payload.ID, translatedText, sender,
		payload.Language, payload.Timestamp,
		true, s.viewer.ID,
	)

	return []chat.Message{original, translated}
}
