// Package base62 реализует позиционное кодирование чисел в base62.
//
// Алфавит: 0-9, a-z, A-Z (62 символа, URL-safe). Порядок символов
// зафиксирован навсегда - его изменение сделает невалидными все
// существующие короткие коды.
package base62

import (
	"errors"
	"math"
)

const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	base     = uint64(62)
)

var (
	// ErrInvalidCharacter возвращается, если строка содержит символ вне алфавита
	ErrInvalidCharacter = errors.New("invalid character in base62 string")

	// ErrOverflow возвращается, если декодированное значение не помещается в uint64
	ErrOverflow = errors.New("decoded value exceeds uint64 range")
)

// Таблица символ -> значение (0-61), 255 для символов вне алфавита
var charValue [256]byte

func init() {
	for i := range charValue {
		charValue[i] = 255
	}
	for i := 0; i < len(alphabet); i++ {
		charValue[alphabet[i]] = byte(i)
	}
}

// Encode кодирует неотрицательное число в base62 строку.
// Encode(0) возвращает "0" - первый символ алфавита, не пустую строку.
func Encode(num uint64) string {
	if num == 0 {
		return string(alphabet[0])
	}

	// Максимальная длина uint64 в base62 - 11 символов
	buf := make([]byte, 0, 11)
	for num > 0 {
		buf = append(buf, alphabet[num%base])
		num /= base
	}

	// Строили от младшего разряда к старшему - разворачиваем
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf)
}

// Decode декодирует base62 строку обратно в число.
// Точная инверсия Encode для всех значений uint64. Пустая строка невалидна.
func Decode(str string) (uint64, error) {
	if str == "" {
		return 0, ErrInvalidCharacter
	}

	var result uint64
	for i := 0; i < len(str); i++ {
		v := charValue[str[i]]
		if v == 255 {
			return 0, ErrInvalidCharacter
		}

		// Проверка переполнения перед умножением и сложением
		if result > (math.MaxUint64-uint64(v))/base {
			return 0, ErrOverflow
		}
		result = result*base + uint64(v)
	}

	return result, nil
}

// IsValid проверяет, что строка целиком состоит из символов алфавита
func IsValid(str string) bool {
	if str == "" {
		return false
	}
	for i := 0; i < len(str); i++ {
		if charValue[str[i]] == 255 {
			return false
		}
	}
	return true
}
