package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/handoff/pkg/domain"
)

// CorrectiveInstruction is sent when the model answered with nothing at all.
const CorrectiveInstruction = "Respond with a real output."

// LeaveMessage answers the escalate proposal that hands control back.
const LeaveMessage = "Resuming dialog with the primary assistant. Please reflect on the past conversation and assist the user as needed."

func entryMessage(h domain.HandlerSpec) string {
	return fmt.Sprintf("The assistant is now the %s. Reflect on the above conversation between the host assistant and the user. "+
		"The user's intent is unsatisfied. Use the provided tools to assist the user. Remember, you are %s, "+
		"and the booking, update, or other action is not complete until after you have successfully invoked the appropriate tool. "+
		"If the user changes their mind or needs help for other tasks, call the %s function to let the primary host assistant take control. "+
		"Do not mention who you are - just act as the proxy for the assistant.",
		h.Name, h.Name, domain.EscalateToolName)
}

func denialMessage(reason string) string {
	return fmt.Sprintf("API call denied by user. Reasoning: '%s'. Continue assisting, accounting for the user's input.", reason)
}

func toolErrorMessage(err error) string {
	return fmt.Sprintf("Error: %v\n please fix your mistakes.", err)
}

func notExecutedMessage(name, why string) string {
	return fmt.Sprintf("Not executed: %s. %s", name, why)
}

func missingArgsError(missing []string) error {
	return fmt.Errorf("missing required argument(s): %s", strings.Join(missing, ", "))
}
