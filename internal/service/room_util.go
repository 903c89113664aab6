package service

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
)

// 去掉了 I O 0 1 这几个容易看混的字符
const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
)

// GenRoomCode 生成一个 6 位房间码
// 优先用加密随机源，失败时退回伪随机
func GenRoomCode() string {
	code := make([]byte, roomCodeLength)
	max := big.NewInt(int64(len(roomCodeAlphabet)))

	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			code[i] = roomCodeAlphabet[mrand.IntN(len(roomCodeAlphabet))]
			continue
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}

	return string(code)
}
