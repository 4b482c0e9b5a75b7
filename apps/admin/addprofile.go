package main

import (
	"context"
	"fmt"
	"time"

	echoapi "github.com/trezcool/baraza/apps/api/echo"
	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/identity"
)

// addProfile updates or creates an identity.Profile and prints a bearer token for it.
func (cli *commandLine) addProfile(id, role, name, number string, ttl time.Duration) error {
	np := identity.NewProfile{
		ID:            id,
		Role:          role,
		DisplayName:   name,
		StudentNumber: number,
	}
	if err := np.Validate(cli.validate); err != nil {
		return core.TranslateValidationErrors(err, cli.translator)
	}

	prof, err := cli.svcs.Profiles.Save(context.Background(), np)
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken(echoapi.GetProfileClaims(prof, cli.conf, ttl), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "profile %s (%s) saved\ntoken: %s\n", prof.ID, prof.Role, token)
	return nil
}
