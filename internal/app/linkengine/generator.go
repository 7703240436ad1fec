package linkengine

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

const codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator 生成随机短码并用存储层的 existence 查询去重。
//
// 它只做只读检查，不预留短码：生成和落库之间有一个小的竞态窗口，
// 由数据库唯一约束兜底（Save 会以 ErrInternal 失败），这层不重试。
type Generator struct {
	store    Store
	length   int
	attempts int
}

func NewGenerator(store Store, length, attempts int) *Generator {
	if length <= 0 {
		length = 8
	}
	if attempts <= 0 {
		attempts = 5
	}
	return &Generator{store: store, length: length, attempts: attempts}
}

// Generate 最多尝试 attempts 次；全部撞码按服务端故障处理
// （ErrCodeExhausted，分类等同 ErrInternal），不当成调用方的校验错误。
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.attempts; i++ {
		code, err := randomCode(g.length)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInternal, err)
		}
		exists, err := g.store.ExistsByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
