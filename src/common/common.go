package common

import (
	"log"
	"tbs/src/lib"
	awslib "tbs/src/lib/aws"
	"tbs/src/utils"
)

func SQSConsumers() {
	dlq := awslib.NewSQSConsumer("DLQ", func(payload string) {
		log.Println("DLQ: message received")
	})
	dlq.Listen()

	go TripsToCloseConsumer()
	go EmailsToSendConsumer()
}

func SNSSubscribes() {
	tripsToClose := awslib.NewSNSSubscriber(utils.WithSuffix("TripsToClose"))
	tripsToClose.Subscribe("sqs", lib.GetQueueArn(utils.WithSuffix("TripsToClose")))
	emailsToSend := awslib.NewSNSSubscriber(utils.WithSuffix("EmailsToSend"))
	emailsToSend.Subscribe("sqs", lib.GetQueueArn(utils.WithSuffix("EmailsToSend")))
}
