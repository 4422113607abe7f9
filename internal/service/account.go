package service

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/model"
	"github.com/iliyamo/button-game/internal/repository"
	"github.com/iliyamo/button-game/internal/utils"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// SignupInput is bound from the signup form.
type SignupInput struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"required,email,max=254"`
	Password1 string `form:"password1" validate:"required,min=8,max=72"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

// AccountService registers and authenticates users.
type AccountService struct {
	users      UserStore
	bcryptCost int
	validate   *validator.Validate
	log        *zap.Logger
}

func NewAccountService(users UserStore, bcryptCost int, log *zap.Logger) *AccountService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &AccountService{users: users, bcryptCost: bcryptCost, validate: v, log: log}
}

// Signup validates in, then creates the user together with an empty
// profile and a zero click counter.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if verr := s.check(in); verr != nil {
		return model.User{}, verr
	}

	hash, err := utils.HashPassword(in.Password1, s.bcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		verr := &ValidationError{}
		verr.Add("password1", "Ensure this value has at most 72 bytes.")
		return model.User{}, verr
	}
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.Create(ctx, in.Username, in.Email, hash)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			verr := &ValidationError{}
			verr.Add("username", "A user with that username already exists.")
			return model.User{}, verr
		}
		return model.User{}, storageErr("signup", err)
	}
	s.log.Info("user signed up", zap.Uint64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// Authenticate checks username and password.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnPasswordCheck(password)
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, storageErr("authenticate", err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Get loads a user by id.
func (s *AccountService) Get(ctx context.Context, id uint64) (model.User, error) {
	if id == 0 {
		return model.User{}, ErrAuthenticationRequired
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrAuthenticationRequired
	}
	if err != nil {
		return model.User{}, storageErr("load user", err)
	}
	return u, nil
}

func (s *AccountService) check(in SignupInput) *ValidationError {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		verr := &ValidationError{}
		verr.Add("__all__", err.Error())
		return verr
	}
	verr := &ValidationError{}
	for _, fe := range ves {
		verr.Add(fe.Field(), message(fe))
	}
	return verr
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Letters, digits and @/./+/-/_ only."
	case "eqfield":
		return "The two password fields didn't match."
	case "min":
		return "Ensure this value has at least " + fe.Param() + " characters."
	case "max":
		return "Ensure this value has at most " + fe.Param() + " characters."
	}
	return "Invalid value."
}
