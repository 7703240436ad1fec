package main

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"lurl.local/internal/platform/auth"
	"lurl.local/internal/platform/config"
)

// 为指定持链人签发一个测试用 bearer token（使用当前配置的 JWT 密钥）。
func main() {
	if len(os.Args) != 2 {
		log.Fatal("usage: go run ./cmd/tools/minttoken <owner-uuid>")
	}

	ownerID, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}

	cfg := config.Load()
	ts, err := auth.NewHS256Service(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		log.Fatal(err)
	}

	token, err := ts.Sign(ownerID)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(token)
}
