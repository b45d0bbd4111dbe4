package services

import (
	"net/mail"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func normalisePage(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	return page, perPage
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
