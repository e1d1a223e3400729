package command

type CommandState int

//	┌───────┐
//	│Pending│
//	└───────┘
//	    ▼
//	┌─────────┐
//	│Committed│
//	└─────────┘
//	    ▼
//	  ┌────┐
//	  │Done│
//	  └────┘
const (
	CommandState_Pending CommandState = iota
	CommandState_Committed
	CommandState_Done
)

func (cs CommandState) String() string {
	switch cs {
	case CommandState_Pending:
		return "Pending"
	case CommandState_Committed:
		return "Committed"
	case CommandState_Done:
		return "Done"
	default:
		panic("unknown command state")
	}
}
