package address

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// HRP 钱包地址的人类可读前缀
const HRP = "bw"

// payloadSize 地址负载字节数
const payloadSize = 20

var ErrInvalidAddress = errors.New("钱包地址无效")

// New 生成一个新的钱包地址：20 字节随机负载，bech32 编码。
// 地址只作为不透明标识使用，不对应任何链上账户。
func New() (string, error) {
	payload := make([]byte, payloadSize)
	if _, err := rand.Read(payload); err != nil {
		return "", fmt.Errorf("生成地址负载失败: %w", err)
	}
	return Encode(payload)
}

// Encode 将原始负载编码为 bech32 地址
func Encode(payload []byte) (string, error) {
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("转换地址负载失败: %w", err)
	}
	return bech32.Encode(HRP, conv)
}

// Validate 校验地址的前缀、校验和与负载长度
func Validate(addr string) error {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return ErrInvalidAddress
	}
	if hrp != HRP {
		return ErrInvalidAddress
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(decoded) != payloadSize {
		return ErrInvalidAddress
	}
	return nil
}
