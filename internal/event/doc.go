/*
Package event provides a pub/sub event system for the server.

Publishers emit events without knowing who consumes them. The command
executor reports every execution, the agent orchestrator reports sub-agent
lifecycles, tools report file edits, and the permission layer reports
approvals.

# Delivery

Direct subscribers (Subscribe, SubscribeAll) receive the Event value with
its typed Data. Publish calls each subscriber in its own goroutine;
PublishSync calls them in order before returning.

Every event is also serialized to JSON and published on the watermill
gochannel topic "events". Stream exposes that topic as a channel of
Envelope values, which the CLI uses to write an audit trail to the log.

# Event Types

  - command.executed: a command, script or script file finished (CommandExecutedData)
  - tool.called: a tool invocation returned (ToolCalledData)
  - agent.started / agent.finished: sub-agent lifecycle (AgentStartedData, AgentFinishedData)
  - file.edited: a tool wrote or edited a file (FileEditedData)
  - permission.approved: an operation approval was recorded (ApprovalGrantedData)
  - permission.reloaded: approvals were imported from the state file (ApprovalsReloadedData)

# Usage

	unsub := event.Subscribe(event.CommandExecuted, func(e event.Event) {
		data := e.Data.(event.CommandExecutedData)
		fmt.Println(data.Command, data.ReturnCode)
	})
	defer unsub()
*/
package event
