// Command issue-token mints a bearer token for local testing.  The
// holder id becomes the token subject and is the identity the booking
// API sees.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/iliyamo/showtime-booking/internal/utils"
)

func main() {
	holder := pflag.String("holder", "", "holder id to embed (random UUID when empty)")
	ttl := pflag.Duration("ttl", 0, "token lifetime (defaults to ACCESS_TOKEN_TTL_MIN minutes)")
	pflag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logrus.Fatal("JWT_SECRET is not set")
	}
	if *holder == "" {
		*holder = uuid.NewString()
	}
	if *ttl == 0 {
		*ttl = 60 * time.Minute
		if v := os.Getenv("ACCESS_TOKEN_TTL_MIN"); v != "" {
			d, err := time.ParseDuration(v + "m")
			if err != nil {
				logrus.WithError(err).Fatal("invalid ACCESS_TOKEN_TTL_MIN")
			}
			*ttl = d
		}
	}

	tok, err := utils.NewAccessToken(secret, *holder, *ttl)
	if err != nil {
		logrus.WithError(err).Fatal("sign token")
	}
	logrus.WithFields(logrus.Fields{"holder_id": *holder, "expires_at": tok.Exp.Format(time.RFC3339)}).Info("token issued")
	fmt.Println(tok.Token)
}
