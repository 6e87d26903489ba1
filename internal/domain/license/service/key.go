package service

import (
	"crypto/rand"
	"strings"
)

const (
	keyAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	keyGroups   = 4
	keyGroupLen = 4
)

// KeyGenerator 生成授权码
type KeyGenerator func() (string, error)

// GenerateKey XXXX-XXXX-XXXX-XXXX，字符取自大写 base-36
func GenerateKey() (string, error) {
	n := keyGroups * keyGroupLen
	chars := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(chars) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			// 252 = 36*7，丢弃尾部保证均匀
			if b >= 252 {
				continue
			}
			chars = append(chars, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(chars) == n {
				break
			}
		}
	}

	groups := make([]string, keyGroups)
	for i := range groups {
		groups[i] = string(chars[i*keyGroupLen : (i+1)*keyGroupLen])
	}
	return strings.Join(groups, "-"), nil
}
