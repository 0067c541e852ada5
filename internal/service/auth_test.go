package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"

	"bank-cards-api/internal/model"
	"bank-cards-api/internal/repository/memory"
	"bank-cards-api/internal/service"
)

const testSecret = "test-secret"

func newAuthService(t *testing.T) (*service.AuthService, *memory.UserRepository) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	users := memory.NewUserRepository(memory.NewDB())
	return service.NewAuthService(users, testSecret, time.Hour, logger), users
}

func TestSignUpAndSignIn(t *testing.T) {
	auth, _ := newAuthService(t)
	ctx := context.Background()
	input := model.SignUpInput{Username: "ivan", Email: "ivan@example.com", Password: "Secret1!x"}

	user, err := auth.SignUp(ctx, input)
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Role != model.RoleUser || user.Password == input.Password {
		t.Errorf("unexpected user %+v", user)
	}

	_, err = auth.SignUp(ctx, input)
	assertKind(t, err, model.ErrConstraintViolation)

	token, err := auth.SignIn(ctx, model.SignInInput{Email: "IVAN@example.com", Password: input.Password})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	p, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if p.UserID != user.ID || p.Role != model.RoleUser {
		t.Errorf("principal = %+v", p)
	}

	for _, in := range []model.SignInInput{
		{Email: input.Email, Password: "Wrong1!pass"},
		{Email: "nobody@example.com", Password: input.Password},
	} {
		if _, err := auth.SignIn(ctx, in); !errors.Is(err, service.ErrInvalidCredentials) {
			t.Errorf("SignIn(%s) error = %v, want ErrInvalidCredentials", in.Email, err)
		}
	}
}

func TestSignInBlockedUser(t *testing.T) {
	auth, users := newAuthService(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("Secret1!x"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	err = users.Create(ctx, &model.User{
		ID:       uuid.New(),
		Username: "blocked",
		Email:    "blocked@example.com",
		Password: string(hash),
		Role:     model.RoleUser,
		Blocked:  true,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = auth.SignIn(ctx, model.SignInInput{Email: "blocked@example.com", Password: "Secret1!x"})
	assertKind(t, err, model.ErrAccessDenied)
}

func TestEnsureAdmin(t *testing.T) {
	auth, _ := newAuthService(t)
	ctx := context.Background()
	input := model.SignUpInput{Username: "admin", Email: "admin@example.com", Password: "Admin1!pass"}

	if err := auth.EnsureAdmin(ctx, model.SignUpInput{}); err != nil {
		t.Fatalf("EnsureAdmin() without credentials error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := auth.EnsureAdmin(ctx, input); err != nil {
			t.Fatalf("EnsureAdmin() error = %v", err)
		}
	}

	token, err := auth.SignIn(ctx, model.SignInInput{Email: input.Email, Password: input.Password})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	p, err := auth.ParseToken(token)
	if err != nil || !p.IsAdmin() {
		t.Errorf("ParseToken() = %+v, %v", p, err)
	}
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	auth, users := newAuthService(t)
	logger, _ := test.NewNullLogger()
	other := service.NewAuthService(users, "another-secret", time.Hour, logger)

	token, err := other.GenerateJWTToken(uuid.New(), model.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Error("ParseToken() accepted token with foreign signature")
	}
	if _, err := auth.ParseToken("not-a-token"); err == nil {
		t.Error("ParseToken() accepted garbage")
	}

	expired := service.NewAuthService(users, testSecret, -time.Minute, logger)
	token, err = expired.GenerateJWTToken(uuid.New(), model.RoleUser)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Error("ParseToken() accepted expired token")
	}
}
