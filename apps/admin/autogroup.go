package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) autoGroup(activityID string, size int) error {
	groups, err := cli.svcs.Groups.AutoAssignAs(context.Background(), activityID, size)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintln(cli.out, "no unassigned guests")
		return nil
	}
	for _, grp := range groups {
		fmt.Fprintf(cli.out, "%s: %d members, leader %s\n", grp.Name, len(grp.Members), grp.LeaderID)
	}
	return nil
}

func (cli *commandLine) purgeSessions() error {
	n, err := cli.svcs.Guests.PurgeExpired(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d expired sessions deleted\n", n)
	return nil
}
