package store

import "errors"

// Общие ошибки хранилищ.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	ErrInvalidState = errors.New("invalid state")
)
