// Package actiontoken подписывает и проверяет ссылки "одобрить/отклонить",
// которые уходят проверяющему в письме.
//
// Токен имеет вид "{issuedAt}:{hex(HMAC-SHA256(secret, recordID:action:email:issuedAt))}".
// Состояние между выпуском и погашением не хранится, поэтому порядок полей
// в подписываемом сообщении и сравнение за постоянное время менять нельзя.
package actiontoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	ActionApprove = "approve"
	ActionDeny    = "deny"
)

const (
	// Validity - окно жизни токена. Токен возрастом ровно Validity ещё действителен.
	Validity = 7 * 24 * time.Hour

	// MaxClockSkew - насколько issuedAt может опережать часы проверяющего.
	MaxClockSkew = 5 * time.Minute

	// MinSecretLen - минимальная длина секрета в байтах.
	MinSecretLen = 32

	// DevPlaceholderSecret - значение, которое когда-то зашивалось по умолчанию.
	// С ним сервис не стартует.
	DevPlaceholderSecret = "c057f320112909a9eedff367f37a554c65ab7363cccb2f6366d5c1606446938d"
)

var (
	ErrEmptySecret       = errors.New("action token secret is empty")
	ErrPlaceholderSecret = errors.New("action token secret is the development placeholder")
	ErrShortSecret       = errors.New("action token secret is too short")
)

// ValidAction сообщает, можно ли выпустить токен на это действие.
func ValidAction(action string) bool {
	return action == ActionApprove || action == ActionDeny
}

// CheckSecret отсекает секреты, с которыми запускаться нельзя.
func CheckSecret(secret string) error {
	s := strings.TrimSpace(secret)
	switch {
	case s == "":
		return ErrEmptySecret
	case s == DevPlaceholderSecret:
		return ErrPlaceholderSecret
	case len(s) < MinSecretLen:
		return ErrShortSecret
	}
	return nil
}

func sign(secret []byte, recordID, action, principalEmail, issuedAt string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(recordID + ":" + action + ":" + principalEmail + ":" + issuedAt))
	return hex.EncodeToString(mac.Sum(nil))
}

// Generate выпускает токен для тройки (recordID, action, principalEmail).
func Generate(recordID, action, principalEmail string, secret []byte, now time.Time) string {
	issuedAt := strconv.FormatInt(now.Unix(), 10)
	return issuedAt + ":" + sign(secret, recordID, action, principalEmail, issuedAt)
}

// Verify проверяет токен против ожидаемой тройки. Любая ошибка разбора,
// истёкший срок или несовпадение подписи дают false; причина наружу не отдаётся.
func Verify(token, recordID, action, principalEmail string, secret []byte, now time.Time) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	issuedAt, claimed, valid := parse(token)
	if !valid {
		return false
	}

	age := now.Unix() - issuedAt
	if age > int64(Validity/time.Second) {
		return false
	}
	if -age > int64(MaxClockSkew/time.Second) {
		return false
	}

	expected := sign(secret, recordID, action, principalEmail, strconv.FormatInt(issuedAt, 10))
	return subtle.ConstantTimeCompare([]byte(claimed), []byte(expected)) == 1
}

// parse принимает только каноническую запись времени: "0123", "+123" или "-0" не пройдут.
// Отрицательное время (до 1970 года) допустимо, его выдаёт Generate.
func parse(token string) (issuedAt int64, signature string, ok bool) {
	left, right, found := strings.Cut(token, ":")
	if !found || right == "" {
		return 0, "", false
	}
	ts, err := strconv.ParseInt(left, 10, 64)
	if err != nil || strconv.FormatInt(ts, 10) != left {
		return 0, "", false
	}
	return ts, right, true
}

// IssuedAt возвращает время выпуска из хорошо сформированного токена. Подпись не проверяется.
func IssuedAt(token string) (time.Time, bool) {
	ts, _, ok := parse(token)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(ts, 0), true
}

// Signature возвращает подписанную часть токена; используется как ключ
// отметки о погашении.
func Signature(token string) string {
	_, sig, ok := parse(token)
	if !ok {
		return ""
	}
	return sig
}

// Codec - то же самое, но с секретом и часами, заданными один раз при старте.
// Безопасен для одновременного использования.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) (*Codec, error) {
	if err := CheckSecret(secret); err != nil {
		return nil, err
	}
	return &Codec{secret: []byte(strings.TrimSpace(secret)), now: time.Now}, nil
}

// WithClock возвращает копию кодека с другими часами (для тестов и CLI).
func (c *Codec) WithClock(now func() time.Time) *Codec {
	return &Codec{secret: c.secret, now: now}
}

func (c *Codec) Generate(recordID, action, principalEmail string) string {
	return Generate(recordID, action, principalEmail, c.secret, c.now())
}

func (c *Codec) Verify(token, recordID, action, principalEmail string) bool {
	return Verify(token, recordID, action, principalEmail, c.secret, c.now())
}

// Remaining - сколько ещё живёт токен по часам кодека. Для невалидного токена 0.
func (c *Codec) Remaining(token string) time.Duration {
	issued, ok := IssuedAt(token)
	if !ok {
		return 0
	}
	left := issued.Add(Validity).Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}
