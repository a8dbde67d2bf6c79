package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ajxudir/xpkg/pkg/transaction"
)

// confirmInput is swapped by tests to script the confirmation answer.
var confirmInput io.Reader = os.Stdin

// confirmPlan prints the plan summary and asks for confirmation.
// An empty answer means yes.
func confirmPlan(plan []*transaction.Entry) bool {
	groups := map[transaction.Action][]string{}
	for _, e := range plan {
		groups[e.Action] = append(groups[e.Action], e.Pkg.Pkgver)
	}
	for _, g := range []struct {
		action transaction.Action
		label  string
	}{
		{transaction.ActionInstall, "installed"},
		{transaction.ActionUpdate, "updated"},
		{transaction.ActionConfigure, "configured"},
		{transaction.ActionRemove, "removed"},
		{transaction.ActionHoldRemove, "removed"},
	} {
		if pkgs := groups[g.action]; len(pkgs) > 0 {
			fmt.Printf("%d package(s) will be %s:\n  %s\n", len(pkgs), g.label, strings.Join(pkgs, " "))
		}
	}
	fmt.Printf("\nDo you want to continue? [Y/n] ")
	answer, err := bufio.NewReader(confirmInput).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "" || answer == "y" || answer == "yes"
}
