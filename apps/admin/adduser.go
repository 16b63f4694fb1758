package main

import (
	"context"
	"fmt"

	"github.com/sistemaeducativo/gradebook/core/user"
)

func (cli *commandLine) addUser(nu user.NewUser) error {
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s %s (%s)\n", usr.Role.DisplayName(), usr.Email, usr.ID)
	return nil
}
