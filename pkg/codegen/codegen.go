package codegen

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	// Alphabet 邀请码字符集：大写字母 + 数字，共 36 个符号
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Length 邀请码长度（约 31 bit 熵）
	Length = 6
)

// ErrInvalidFormat 邀请码格式不合法
var ErrInvalidFormat = errors.New("邀请码格式无效")

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate 生成一个 6 位邀请码，每一位从 Alphabet 中均匀抽取。
// 不访问任何外部状态；碰撞由调用方处理。
func Generate() (string, error) {
	result := make([]byte, Length)
	for i := range result {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		result[i] = Alphabet[n.Int64()]
	}
	return string(result), nil
}

// Normalize 去除首尾空白并转为大写，便于用户手动输入
func Normalize(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// Validate 校验规范化后的邀请码格式
func Validate(token string) error {
	if len(token) != Length {
		return ErrInvalidFormat
	}
	for i := 0; i < len(token); i++ {
		if strings.IndexByte(Alphabet, token[i]) < 0 {
			return ErrInvalidFormat
		}
	}
	return nil
}
