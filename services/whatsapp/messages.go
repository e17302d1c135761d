package whatsapp

import (
	"fmt"
	"strings"
)

// BulletinMessage holds what a guardian is told about a sent bulletin.
type BulletinMessage struct {
	Language         string // fr (default) | en
	GuardianName     string
	StudentID        string
	TermID           string
	Average          string
	Rank             int
	ClassSize        int
	TrackingNumber   string
	VerificationCode string
	VerifyURL        string
}

func (m BulletinMessage) Text() string {
	var b strings.Builder
	if m.Language == "en" {
		fmt.Fprintf(&b, "Hello %s,\n\n", m.GuardianName)
		fmt.Fprintf(&b, "The report card of %s for term %s is available.\n", m.StudentID, m.TermID)
		fmt.Fprintf(&b, "General average: %s/20", m.Average)
		if m.Rank > 0 {
			fmt.Fprintf(&b, " (rank %d/%d)", m.Rank, m.ClassSize)
		}
		fmt.Fprintf(&b, "\nTracking number: %s\nVerification code: %s", m.TrackingNumber, m.VerificationCode)
		if m.VerifyURL != "" {
			fmt.Fprintf(&b, "\nVerify it on %s", m.VerifyURL)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Bonjour %s,\n\n", m.GuardianName)
	fmt.Fprintf(&b, "Le bulletin de %s pour le trimestre %s est disponible.\n", m.StudentID, m.TermID)
	fmt.Fprintf(&b, "Moyenne générale : %s/20", m.Average)
	if m.Rank > 0 {
		fmt.Fprintf(&b, " (rang %d/%d)", m.Rank, m.ClassSize)
	}
	fmt.Fprintf(&b, "\nNuméro de suivi : %s\nCode de vérification : %s", m.TrackingNumber, m.VerificationCode)
	if m.VerifyURL != "" {
		fmt.Fprintf(&b, "\nVérifiez-le sur %s", m.VerifyURL)
	}
	return b.String()
}
