// Package credential はパスワードのsalt付きハッシュの生成と検証を提供する。
//
// 作業係数は固定値とし、保存データにバージョンを持たせない。
// 変更すると既存のハッシュが検証できなくなるため、値を変えてはならない。
//   - 鍵導出関数: PBKDF2
//   - ダイジェスト: SHA-512
//   - 反復回数: 100000
//   - 出力長: 64バイト（hex表現で128文字）
//   - salt: 16バイトの乱数（hex表現で32文字）
package credential

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/hitoshi/taskgun/internal/model"
)

const (
	Iterations = 100000
	KeyLength  = 64
	SaltLength = 16
)

// ErrEmptyPassword は空のパスワードをハッシュしようとした場合のエラー。
var ErrEmptyPassword = errors.New("password must not be empty")

// Hash はパスワードからsalt付きハッシュを導出する。
// saltが空文字列の場合は新しいsaltを生成する。
// 同じpasswordとsaltに対しては常に同じハッシュを返す。
func Hash(password, salt string) (model.Credential, error) {
	if password == "" {
		return model.Credential{}, ErrEmptyPassword
	}

	if salt == "" {
		b := make([]byte, SaltLength)
		if _, err := rand.Read(b); err != nil {
			return model.Credential{}, fmt.Errorf("failed to generate salt: %w", err)
		}
		salt = hex.EncodeToString(b)
	}

	return model.Credential{
		Salt: salt,
		Hash: hex.EncodeToString(derive(password, salt)),
	}, nil
}

// Verify はパスワードが保存済みのsaltとハッシュに一致するかを判定する。
// 空のパスワードや不正なハッシュ表現は常に不一致とする。
func Verify(password, salt, hash string) bool {
	if password == "" || salt == "" {
		return false
	}

	want, err := hex.DecodeString(hash)
	if err != nil || len(want) != KeyLength {
		return false
	}

	return subtle.ConstantTimeCompare(derive(password, salt), want) == 1
}

// derive はsaltをhex文字列のままバイト列として鍵導出に使う。
func derive(password, salt string) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), Iterations, KeyLength, sha512.New)
}
