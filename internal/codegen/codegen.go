// Package codegen определяет внешний формат коротких кодов.
//
// Формат: base62(id + offset), дополненный слева первым символом алфавита
// до минимальной ширины. Смещение убирает визуально короткие коды для
// первых id, паддинг фиксирует минимальную длину. Оба шага обратимы:
// ведущие нули не несут значения, смещение вычитается при декодировании,
// поэтому отображение id <-> код остаётся биекцией.
package codegen

import (
	"errors"
	"strings"

	"github.com/mkorchagin/shortener/pkg/base62"
)

// Параметры формата по умолчанию. Менять их на работающей системе нельзя:
// смещение участвует в декодировании уже выданных кодов.
const (
	DefaultOffset    = 10000
	DefaultMinLength = 6
)

// ErrInvalidCode возвращается, когда строка не является валидным коротким кодом
var ErrInvalidCode = errors.New("invalid short code")

// Generator преобразует числовые id в короткие коды и обратно
type Generator struct {
	offset    uint64
	minLength int
}

// NewGenerator создаёт генератор с заданным смещением и минимальной длиной кода
func NewGenerator(offset uint64, minLength int) *Generator {
	if minLength < 1 {
		minLength = 1
	}
	return &Generator{offset: offset, minLength: minLength}
}

// Default возвращает генератор со стандартными параметрами формата
func Default() *Generator {
	return NewGenerator(DefaultOffset, DefaultMinLength)
}

// Encode преобразует id в короткий код
func (g *Generator) Encode(id uint64) string {
	code := base62.Encode(id + g.offset)
	if len(code) < g.minLength {
		code = strings.Repeat("0", g.minLength-len(code)) + code
	}
	return code
}

// Decode восстанавливает id из короткого кода.
// Возвращает ErrInvalidCode, если код содержит символы вне алфавита
// или его числовое значение меньше смещения (такой код никогда не выдавался).
func (g *Generator) Decode(code string) (uint64, error) {
	num, err := base62.Decode(code)
	if err != nil {
		return 0, ErrInvalidCode
	}
	if num < g.offset {
		return 0, ErrInvalidCode
	}
	return num - g.offset, nil
}

// IsWellFormed проверяет код по алфавиту, не обращаясь к хранилищу.
// Дешевле полного Decode, когда числовое значение не нужно.
func (g *Generator) IsWellFormed(code string) bool {
	return base62.IsValid(code)
}
