package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		errMsg   string
		wantErr  bool
	}{
		{
			name:     "successful hash",
			password: "correct horse battery staple",
			wantErr:  false,
		},
		{
			name:     "empty password",
			password: "",
			wantErr:  true,
			errMsg:   "password cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)
		})
	}
}

func TestHashPassword_Salted(t *testing.T) {
	h1, err := HashPassword("samepassword")
	require.NoError(t, err)
	h2, err := HashPassword("samepassword")
	require.NoError(t, err)

	// bcrypt salts per call
	assert.NotEqual(t, h1, h2)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("validpassword1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hashed   string
		wantErr  bool
	}{
		{
			name:     "correct password",
			password: "validpassword1",
			hashed:   hash,
			wantErr:  false,
		},
		{
			name:     "wrong password",
			password: "wrongpassword",
			hashed:   hash,
			wantErr:  true,
		},
		{
			name:     "empty password",
			password: "",
			hashed:   hash,
			wantErr:  true,
		},
		{
			name:     "empty hash",
			password: "validpassword1",
			hashed:   "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPassword(tt.password, tt.hashed)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("refresh-token-abc")
	h2 := HashToken("refresh-token-abc")
	h3 := HashToken("refresh-token-xyz")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64) // hex-encoded sha256
}
