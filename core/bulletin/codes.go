package bulletin

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var randReader io.Reader = rand.Reader // mockable

var (
	salt    = []byte("educafric.core.bulletin.codes")
	NowFunc = time.Now // mockable

	codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

	trackingPrefix  = "BUL"
	trackingRandLen = 10
	codeLen         = 12
	qrPrefix        = "EDU1"
	qrSigLen        = 16

	errInvalidQRCode = errors.New("invalid QR code")
)

// Signer issues and checks the verification artifacts of bulletins.
type Signer struct {
	key []byte
}

func NewSigner(secretKey string) *Signer {
	key := sha256.Sum256(append(append([]byte{}, salt...), secretKey...))
	return &Signer{key: key[:]}
}

func randomString(r io.Reader, n int) (string, error) {
	buf := make([]byte, (n*5+7)/8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return codeEncoding.EncodeToString(buf)[:n], nil
}

// NewTrackingNumber returns a tracking number of the form BUL-<year>-<10 random base32 chars>.
func NewTrackingNumber(now time.Time) (string, error) {
	s, err := randomString(randReader, trackingRandLen)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", trackingPrefix, now.Year(), s), nil
}

// NewVerificationCode returns a 12 chars uppercase code a parent can type in.
func NewVerificationCode() (string, error) {
	return randomString(randReader, codeLen)
}

// NormalizeCode uppercases a verification code typed in by a user and drops separators.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}

func (s *Signer) sign(val []byte) string {
	h := hmac.New(sha256.New, s.key)
	_, _ = h.Write(val)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// QRPayload returns the content encoded in the QR code printed on a bulletin.
func (s *Signer) QRPayload(trackingNumber, code string) string {
	sig := s.sign([]byte(trackingNumber + ":" + code))[:qrSigLen]
	return strings.Join([]string{qrPrefix, trackingNumber, code, sig}, ":")
}

// ParseQRPayload checks the signature of a QR payload and returns the tracking number and verification code.
func (s *Signer) ParseQRPayload(payload string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(payload), ":")
	if len(parts) != 4 || parts[0] != qrPrefix {
		return "", "", errInvalidQRCode
	}
	want := s.QRPayload(parts[1], parts[2])
	if subtle.ConstantTimeCompare([]byte(want), []byte(strings.Join(parts, ":"))) == 0 {
		return "", "", errInvalidQRCode
	}
	return parts[1], parts[2], nil
}

// SecurityHash signs the content of a bulletin: identity, issued codes, average and grades.
func (s *Signer) SecurityHash(b Bulletin) string {
	return s.sign(canonicalContent(b))
}

// CheckSecurityHash reports whether the stored hash still matches the bulletin's content.
func (s *Signer) CheckSecurityHash(b Bulletin) bool {
	if b.SecurityHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.SecurityHash(b)), []byte(b.SecurityHash)) == 1
}

// Issue gives b its tracking number and verification code when missing, then (re)signs it.
func (s *Signer) Issue(b *Bulletin, now time.Time) error {
	if b.TrackingNumber == "" {
		tn, err := NewTrackingNumber(now)
		if err != nil {
			return errors.Wrap(err, "generating tracking number")
		}
		b.TrackingNumber = tn
	}
	if b.VerificationCode == "" {
		code, err := NewVerificationCode()
		if err != nil {
			return errors.Wrap(err, "generating verification code")
		}
		b.VerificationCode = code
	}
	b.QRCode = s.QRPayload(b.TrackingNumber, b.VerificationCode)
	b.SecurityHash = s.SecurityHash(*b)
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func canonicalContent(b Bulletin) []byte {
	var val bytes.Buffer
	for _, part := range []string{b.ID, b.StudentID, b.ClassID, b.TermID, b.AcademicYearID, b.TrackingNumber, b.VerificationCode} {
		val.WriteString(part)
		val.WriteByte('|')
	}
	if b.GeneralAverage != nil {
		val.WriteString(formatFloat(*b.GeneralAverage))
	}

	grades := make([]Grade, len(b.Grades))
	copy(grades, b.Grades)
	sort.Slice(grades, func(i, j int) bool { return grades[i].SubjectID < grades[j].SubjectID })
	for _, g := range grades {
		fmt.Fprintf(&val, "|%s:%s:%s", g.SubjectID, formatFloat(g.Grade), formatFloat(g.Coefficient))
	}
	return val.Bytes()
}
